package quote

import (
	"context"
	"fmt"

	"github.com/gustavo/comet-kit/internal/comet"
	clierr "github.com/gustavo/comet-kit/internal/errors"
	"github.com/gustavo/comet-kit/internal/router"
)

type LeverageRequest struct {
	Account  string
	Token    *comet.Token
	Amount   string
	Slippage int
}

type LeverageQuotation struct {
	LeverageTimes   string   `json:"leverageTimes"`
	CurrentPosition Position `json:"currentPosition"`
	TargetPosition  Position `json:"targetPosition"`
}

// Leverage flash-loans the collateral token, supplies it, borrows enough base
// token to swap back into the flash-loan repay amount, and brackets the
// sequence with the loan pair.
func (q *Quoter) Leverage(ctx context.Context, marketID string, req LeverageRequest) (*QuoteResult, error) {
	p, err := q.prepare(ctx, marketID, req.Account, req.Amount)
	if err != nil {
		return nil, err
	}
	market, info, account, amount := p.market, p.info, p.account, p.amount

	current := currentPosition(info)
	result := emptyResult()
	result.Quotation = LeverageQuotation{LeverageTimes: "0", CurrentPosition: current, TargetPosition: current}
	if req.Token == nil || !p.active {
		return result, nil
	}

	collateral, ok := info.FindCollateral(req.Token.Address)
	if !ok {
		return nil, clierr.NewBadRequest("400.5", "leverage token is not collateral")
	}
	leverageUSD := amount.Mul(dec(collateral.AssetPrice))

	flashQuote, err := q.router.GetFlashLoanAggregatorQuotation(ctx, q.chainID(), router.FlashLoanQuoteRequest{
		Loans: []router.TokenAmount{{Token: collateral.Asset, Amount: amount.String()}},
	})
	if err != nil {
		return nil, err
	}

	// Borrow exactly the base amount the swap needs to produce the repay
	// amount, slippage included.
	swapQuote, err := q.router.GetSwapTokenQuotation(ctx, q.chainID(), router.SwapQuoteRequest{
		TokenIn:  &info.BaseToken,
		Output:   &flashQuote.Repays[0],
		Slippage: req.Slippage,
	})
	if err != nil {
		return nil, err
	}
	borrowAmount := dec(swapQuote.Input.Amount)

	if dec(info.BorrowBalance).Add(borrowAmount).LessThan(market.BaseBorrowMin) {
		return nil, clierr.NewBadRequest("400.6",
			fmt.Sprintf("target borrow balance is less than base borrow min of %s %s", market.BaseBorrowMin, market.BaseToken.Symbol))
	}

	loanLogic, repayLogic := router.NewFlashLoanAggregatorLogicPair(flashQuote.ProtocolID, flashQuote.Loans)
	logics := []router.Logic{
		loanLogic,
		router.NewSupplyCollateralLogic(marketID, flashQuote.Loans[0], router.BPSBase),
		router.NewBorrowLogic(marketID, router.TokenAmount{Token: info.BaseToken, Amount: swapQuote.Input.Amount}),
		router.NewSwapTokenLogic(swapQuote),
		repayLogic,
	}

	estimate, err := q.router.EstimateRouterData(ctx, router.RouterData{ChainID: q.chainID(), Account: account, Logics: logics}, "")
	if err != nil {
		return nil, err
	}
	result.applyEstimate(estimate, logics)

	leverageTimes := "0"
	if capacityUSD := dec(info.BorrowCapacityUSD); !capacityUSD.IsZero() {
		leverageTimes = leverageUSD.Div(capacityUSD).Round(2).String()
	}

	target := newProjection(info)
	target.BorrowUSD = target.BorrowUSD.Add(borrowAmount.Mul(dec(info.BaseTokenPrice)))
	target.CollateralUSD = target.CollateralUSD.Add(leverageUSD)
	target.BorrowCapacityUSD = target.BorrowCapacityUSD.Add(leverageUSD.Mul(dec(collateral.BorrowCollateralFactor)))
	target.LiquidationLimitUSD = target.LiquidationLimitUSD.Add(leverageUSD.Mul(dec(collateral.LiquidateCollateralFactor)))

	result.Quotation = LeverageQuotation{
		LeverageTimes:   leverageTimes,
		CurrentPosition: current,
		TargetPosition:  target.position(),
	}
	return result, nil
}
