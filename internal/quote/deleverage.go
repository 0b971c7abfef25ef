package quote

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/gustavo/comet-kit/internal/comet"
	clierr "github.com/gustavo/comet-kit/internal/errors"
	"github.com/gustavo/comet-kit/internal/router"
)

type DeleverageRequest struct {
	Account         string
	CollateralToken *comet.Token
	BaseAmount      string
	Slippage        int
}

type DeleverageQuotation struct {
	CurrentPosition Position `json:"currentPosition"`
	TargetPosition  Position `json:"targetPosition"`
}

// Deleverage flash-loans collateral, swaps it into the requested base amount,
// repays debt with it and withdraws collateral to settle the loan.
func (q *Quoter) Deleverage(ctx context.Context, marketID string, req DeleverageRequest) (*QuoteResult, error) {
	p, err := q.prepare(ctx, marketID, req.Account, req.BaseAmount)
	if err != nil {
		return nil, err
	}
	info, account, baseAmount := p.info, p.account, p.amount

	current := currentPosition(info)
	result := emptyResult()
	result.Quotation = DeleverageQuotation{CurrentPosition: current, TargetPosition: current}
	if req.CollateralToken == nil || !p.active {
		return result, nil
	}

	collateral, ok := info.FindCollateral(req.CollateralToken.Address)
	if !ok {
		return nil, clierr.NewBadRequest("400.5", "deleverage token is not collateral")
	}
	repayUSD := baseAmount.Mul(dec(info.BaseTokenPrice))

	// The router only moves ERC20s; natively-presented tokens go in wrapped.
	collateralAsset := collateral.Asset.Wrapped()
	baseToken := info.BaseToken.Wrapped()

	// Exact-output quote: how much collateral the swap consumes to produce
	// the requested base amount.
	swapQuote, err := q.router.GetSwapTokenQuotation(ctx, q.chainID(), router.SwapQuoteRequest{
		TokenIn:  &collateralAsset,
		Output:   &router.TokenAmount{Token: baseToken, Amount: baseAmount.String()},
		Slippage: req.Slippage,
	})
	if err != nil {
		return nil, err
	}
	if dec(swapQuote.Input.Amount).GreaterThan(dec(collateral.CollateralBalance)) {
		return nil, clierr.NewBadRequest("400.6", "insufficient collateral for deleverage")
	}

	flashQuote, err := q.router.GetFlashLoanAggregatorQuotation(ctx, q.chainID(), router.FlashLoanQuoteRequest{
		Loans: []router.TokenAmount{{Token: collateralAsset, Amount: swapQuote.Input.Amount}},
	})
	if err != nil {
		return nil, err
	}
	withdrawAmount := flashQuote.Repays[0].Amount
	withdrawUSD := dec(withdrawAmount).Mul(dec(collateral.AssetPrice))

	loanLogic, repayLogic := router.NewFlashLoanAggregatorLogicPair(flashQuote.ProtocolID, flashQuote.Loans)
	logics := []router.Logic{
		loanLogic,
		router.NewSwapTokenLogic(swapQuote),
		router.NewRepayLogic(marketID, account, router.TokenAmount{Token: baseToken, Amount: baseAmount.String()}, router.BPSBase),
		router.NewWithdrawCollateralLogic(marketID, router.TokenAmount{Token: collateralAsset, Amount: withdrawAmount}),
		repayLogic,
	}

	estimate, err := q.router.EstimateRouterData(ctx, router.RouterData{ChainID: q.chainID(), Account: account, Logics: logics}, "")
	if err != nil {
		return nil, err
	}
	result.applyEstimate(estimate, logics)

	target := newProjection(info)
	if target.BorrowUSD.GreaterThan(repayUSD) {
		target.BorrowUSD = target.BorrowUSD.Sub(repayUSD)
	} else {
		target.BorrowUSD = decimal.Zero
	}
	target.CollateralUSD = target.CollateralUSD.Sub(withdrawUSD)
	target.BorrowCapacityUSD = target.BorrowCapacityUSD.Sub(withdrawUSD.Mul(dec(collateral.BorrowCollateralFactor)))
	target.LiquidationLimitUSD = target.LiquidationLimitUSD.Sub(withdrawUSD.Mul(dec(collateral.LiquidateCollateralFactor)))

	result.Quotation = DeleverageQuotation{CurrentPosition: current, TargetPosition: target.position()}
	return result, nil
}
