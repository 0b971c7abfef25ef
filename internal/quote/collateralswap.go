package quote

import (
	"context"

	"github.com/gustavo/comet-kit/internal/comet"
	clierr "github.com/gustavo/comet-kit/internal/errors"
	"github.com/gustavo/comet-kit/internal/router"
)

type CollateralSwapRequest struct {
	Account   string
	SrcToken  *comet.Token
	SrcAmount string
	DestToken *comet.Token
	Slippage  int
}

type CollateralSwapQuotation struct {
	DestAmount      string   `json:"destAmount"`
	CurrentPosition Position `json:"currentPosition"`
	TargetPosition  Position `json:"targetPosition"`
}

// CollateralSwap withdraws one collateral, swaps it and supplies the result
// as a different collateral, funded by a flash loan sized so its repays match
// the withdrawal.
func (q *Quoter) CollateralSwap(ctx context.Context, marketID string, req CollateralSwapRequest) (*QuoteResult, error) {
	p, err := q.prepare(ctx, marketID, req.Account, req.SrcAmount)
	if err != nil {
		return nil, err
	}
	info, account, srcAmount := p.info, p.account, p.amount

	current := currentPosition(info)
	result := emptyResult()
	result.Quotation = CollateralSwapQuotation{DestAmount: "0", CurrentPosition: current, TargetPosition: current}
	if req.SrcToken == nil || req.DestToken == nil || !p.active {
		return result, nil
	}

	srcCollateral, ok := info.FindCollateral(req.SrcToken.Address)
	if !ok {
		return nil, clierr.NewBadRequest("400.5", "source token is not collateral")
	}
	if srcAmount.GreaterThan(dec(srcCollateral.CollateralBalance)) {
		return nil, clierr.NewBadRequest("400.6", "source amount is greater than available amount")
	}
	destCollateral, ok := info.FindCollateral(req.DestToken.Address)
	if !ok {
		return nil, clierr.NewBadRequest("400.7", "destination token is not collateral")
	}

	// The router only moves ERC20s; natively-presented tokens go in wrapped.
	srcAsset := srcCollateral.Asset.Wrapped()
	destAsset := destCollateral.Asset.Wrapped()

	withdrawal := router.TokenAmount{Token: srcAsset, Amount: srcAmount.String()}
	flashQuote, err := q.router.GetFlashLoanAggregatorQuotation(ctx, q.chainID(), router.FlashLoanQuoteRequest{
		Repays: []router.TokenAmount{withdrawal},
	})
	if err != nil {
		return nil, err
	}

	swapQuote, err := q.router.GetSwapTokenQuotation(ctx, q.chainID(), router.SwapQuoteRequest{
		Input:    &flashQuote.Loans[0],
		TokenOut: &destAsset,
		Slippage: req.Slippage,
	})
	if err != nil {
		return nil, err
	}
	destAmount := swapQuote.Output.Amount

	loanLogic, repayLogic := router.NewFlashLoanAggregatorLogicPair(flashQuote.ProtocolID, flashQuote.Loans)
	logics := []router.Logic{
		loanLogic,
		router.NewSwapTokenLogic(swapQuote),
		router.NewSupplyCollateralLogic(marketID, router.TokenAmount{Token: destAsset, Amount: destAmount}, router.BPSBase),
		router.NewWithdrawCollateralLogic(marketID, withdrawal),
		repayLogic,
	}

	estimate, err := q.router.EstimateRouterData(ctx, router.RouterData{ChainID: q.chainID(), Account: account, Logics: logics}, "")
	if err != nil {
		return nil, err
	}
	result.applyEstimate(estimate, logics)

	srcUSD := srcAmount.Mul(dec(srcCollateral.AssetPrice))
	destUSD := dec(destAmount).Mul(dec(destCollateral.AssetPrice))

	target := newProjection(info)
	target.CollateralUSD = target.CollateralUSD.Sub(srcUSD).Add(destUSD)
	target.BorrowCapacityUSD = target.BorrowCapacityUSD.
		Sub(srcUSD.Mul(dec(srcCollateral.BorrowCollateralFactor))).
		Add(destUSD.Mul(dec(destCollateral.BorrowCollateralFactor)))
	target.LiquidationLimitUSD = target.LiquidationLimitUSD.
		Sub(srcUSD.Mul(dec(srcCollateral.LiquidateCollateralFactor))).
		Add(destUSD.Mul(dec(destCollateral.LiquidateCollateralFactor)))

	result.Quotation = CollateralSwapQuotation{
		DestAmount:      destAmount,
		CurrentPosition: current,
		TargetPosition:  target.position(),
	}
	return result, nil
}
