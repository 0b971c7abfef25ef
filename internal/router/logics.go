package router

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
)

// Routing ids understood by the estimate endpoint.
const (
	ridFlashLoanAggregator = "utility:flash-loan-aggregator"
	ridSwapToken           = "paraswap-v5:swap-token"
	ridSupplyCollateral    = "compound-v3:supply-collateral"
	ridSupplyBase          = "compound-v3:supply-base"
	ridWithdrawCollateral  = "compound-v3:withdraw-collateral"
	ridWithdrawBase        = "compound-v3:withdraw-base"
	ridBorrow              = "compound-v3:borrow"
	ridRepay               = "compound-v3:repay"
)

// BPSBase marks a logic input as "use the full routed balance".
const BPSBase = 10000

func mustLogic(rid string, fields any) Logic {
	raw, err := json.Marshal(fields)
	if err != nil {
		// Field structs below are plain data; marshalling cannot fail.
		panic(err)
	}
	return Logic{RID: rid, Fields: raw}
}

type flashLoanFields struct {
	ID         string        `json:"id"`
	ProtocolID string        `json:"protocolId"`
	Loans      []TokenAmount `json:"loans"`
	IsLoan     bool          `json:"isLoan"`
}

// NewFlashLoanAggregatorLogicPair returns the loan and repay steps bracketing
// a flash-loaned sequence. The shared id ties the two halves together.
func NewFlashLoanAggregatorLogicPair(protocolID string, loans []TokenAmount) (Logic, Logic) {
	pairID := newPairID()
	loan := mustLogic(ridFlashLoanAggregator, flashLoanFields{ID: pairID, ProtocolID: protocolID, Loans: loans, IsLoan: true})
	repay := mustLogic(ridFlashLoanAggregator, flashLoanFields{ID: pairID, ProtocolID: protocolID, Loans: loans, IsLoan: false})
	return loan, repay
}

func newPairID() string {
	buf := make([]byte, 16)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}

// NewSwapTokenLogic wraps a swap quotation as a routed step.
func NewSwapTokenLogic(quotation SwapQuotation) Logic {
	return mustLogic(ridSwapToken, quotation)
}

type supplyFields struct {
	MarketID   string      `json:"marketId"`
	Input      TokenAmount `json:"input"`
	BalanceBps int         `json:"balanceBps,omitempty"`
}

func NewSupplyCollateralLogic(marketID string, input TokenAmount, balanceBps int) Logic {
	return mustLogic(ridSupplyCollateral, supplyFields{MarketID: marketID, Input: input, BalanceBps: balanceBps})
}

func NewSupplyBaseLogic(marketID string, input TokenAmount, balanceBps int) Logic {
	return mustLogic(ridSupplyBase, supplyFields{MarketID: marketID, Input: input, BalanceBps: balanceBps})
}

type withdrawFields struct {
	MarketID string      `json:"marketId"`
	Output   TokenAmount `json:"output"`
}

func NewWithdrawCollateralLogic(marketID string, output TokenAmount) Logic {
	return mustLogic(ridWithdrawCollateral, withdrawFields{MarketID: marketID, Output: output})
}

func NewWithdrawBaseLogic(marketID string, output TokenAmount) Logic {
	return mustLogic(ridWithdrawBase, withdrawFields{MarketID: marketID, Output: output})
}

func NewBorrowLogic(marketID string, output TokenAmount) Logic {
	return mustLogic(ridBorrow, withdrawFields{MarketID: marketID, Output: output})
}

type repayFields struct {
	MarketID   string      `json:"marketId"`
	Borrower   string      `json:"borrower"`
	Input      TokenAmount `json:"input"`
	BalanceBps int         `json:"balanceBps,omitempty"`
}

func NewRepayLogic(marketID, borrower string, input TokenAmount, balanceBps int) Logic {
	return mustLogic(ridRepay, repayFields{MarketID: marketID, Borrower: borrower, Input: input, BalanceBps: balanceBps})
}
