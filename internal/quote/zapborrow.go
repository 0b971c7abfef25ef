package quote

import (
	"context"
	"fmt"

	"github.com/gustavo/comet-kit/internal/comet"
	clierr "github.com/gustavo/comet-kit/internal/errors"
	"github.com/gustavo/comet-kit/internal/router"
)

type ZapBorrowRequest struct {
	Account     string
	Amount      string
	TargetToken *comet.Token
	Slippage    int
}

type ZapBorrowQuotation struct {
	TargetTokenAmount string   `json:"targetTokenAmount"`
	CurrentPosition   Position `json:"currentPosition"`
	TargetPosition    Position `json:"targetPosition"`
}

// ZapBorrow borrows base token and optionally swaps it into a target token.
// Accounts with a supply balance cannot borrow; Comet would net the borrow
// against the supply.
func (q *Quoter) ZapBorrow(ctx context.Context, marketID string, req ZapBorrowRequest) (*QuoteResult, error) {
	p, err := q.prepare(ctx, marketID, req.Account, req.Amount)
	if err != nil {
		return nil, err
	}
	market, info, account, amount := p.market, p.info, p.account, p.amount

	current := currentPosition(info)
	result := emptyResult()
	result.Quotation = ZapBorrowQuotation{TargetTokenAmount: "0", CurrentPosition: current, TargetPosition: current}
	if req.TargetToken == nil || !p.active {
		return result, nil
	}

	if !dec(info.SupplyUSD).IsZero() {
		return nil, clierr.NewBadRequest("400.5", "supply USD is not zero")
	}
	if amount.GreaterThan(dec(info.AvailableToBorrow)) {
		return nil, clierr.NewBadRequest("400.6", "borrow amount is greater than available amount")
	}
	if dec(info.BorrowBalance).Add(amount).LessThan(market.BaseBorrowMin) {
		return nil, clierr.NewBadRequest("400.7",
			fmt.Sprintf("target borrow balance is less than base borrow min of %s %s", market.BaseBorrowMin, market.BaseToken.Symbol))
	}

	// Borrowing straight to the target pays out in the requested form; a
	// follow-up swap needs the wrapped ERC20 as its input.
	targetIsBase := market.IsBaseToken(req.TargetToken.Address)
	borrowToken := info.BaseToken.Wrapped()
	if targetIsBase {
		borrowToken = *req.TargetToken
	}
	logics := []router.Logic{
		router.NewBorrowLogic(marketID, router.TokenAmount{Token: borrowToken, Amount: amount.String()}),
	}

	targetTokenAmount := amount.String()
	if !targetIsBase {
		swapQuote, err := q.router.GetSwapTokenQuotation(ctx, q.chainID(), router.SwapQuoteRequest{
			Input:    &router.TokenAmount{Token: borrowToken, Amount: amount.String()},
			TokenOut: req.TargetToken,
			Slippage: req.Slippage,
		})
		if err != nil {
			return nil, err
		}
		targetTokenAmount = swapQuote.Output.Amount
		logics = append(logics, router.NewSwapTokenLogic(swapQuote))
	}

	estimate, err := q.router.EstimateRouterData(ctx, router.RouterData{ChainID: q.chainID(), Account: account, Logics: logics}, "")
	if err != nil {
		return nil, err
	}
	result.applyEstimate(estimate, logics)

	// Debt grows by the borrowed base amount regardless of what the swap
	// yields on the other side.
	target := newProjection(info)
	target.BorrowUSD = target.BorrowUSD.Add(amount.Mul(dec(info.BaseTokenPrice)))

	result.Quotation = ZapBorrowQuotation{
		TargetTokenAmount: targetTokenAmount,
		CurrentPosition:   current,
		TargetPosition:    target.position(),
	}
	return result, nil
}
