package quote

import (
	"context"

	"github.com/gustavo/comet-kit/internal/comet"
	clierr "github.com/gustavo/comet-kit/internal/errors"
	"github.com/gustavo/comet-kit/internal/router"
)

type ZapSupplyRequest struct {
	Account     string
	SrcToken    *comet.Token
	SrcAmount   string
	DestToken   *comet.Token
	Slippage    int
	Permit2Type string
}

type ZapSupplyQuotation struct {
	DestAmount      string   `json:"destAmount"`
	CurrentPosition Position `json:"currentPosition"`
	TargetPosition  Position `json:"targetPosition"`
}

// ZapSupply swaps an arbitrary source token into the base token or a
// collateral and supplies the result. Supplying base while debt is open is
// rejected; Comet nets such a supply against the debt instead of crediting it.
func (q *Quoter) ZapSupply(ctx context.Context, marketID string, req ZapSupplyRequest) (*QuoteResult, error) {
	p, err := q.prepare(ctx, marketID, req.Account, req.SrcAmount)
	if err != nil {
		return nil, err
	}
	market, info, account, srcAmount := p.market, p.info, p.account, p.amount

	current := currentPosition(info)
	result := emptyResult()
	result.Quotation = ZapSupplyQuotation{DestAmount: "0", CurrentPosition: current, TargetPosition: current}
	if req.SrcToken == nil || req.DestToken == nil || !p.active {
		return result, nil
	}

	destCollateral, isCollateral := info.FindCollateral(req.DestToken.Address)
	destIsBase := market.IsBaseToken(req.DestToken.Address)
	if !isCollateral && !destIsBase {
		return nil, clierr.NewBadRequest("400.5", "destination token is not collateral nor base")
	}
	if destIsBase && !dec(info.BorrowUSD).IsZero() {
		return nil, clierr.NewBadRequest("400.6", "borrow USD is not zero")
	}

	// Without a swap the source token is supplied as given; with one, the
	// swap must produce the wrapped ERC20 the market actually holds.
	var logics []router.Logic
	supplyToken := *req.SrcToken
	destAmount := srcAmount.String()
	if !req.SrcToken.Is(*req.DestToken) {
		supplyToken = req.DestToken.Wrapped()
		swapQuote, err := q.router.GetSwapTokenQuotation(ctx, q.chainID(), router.SwapQuoteRequest{
			Input:    &router.TokenAmount{Token: *req.SrcToken, Amount: srcAmount.String()},
			TokenOut: &supplyToken,
			Slippage: req.Slippage,
		})
		if err != nil {
			return nil, err
		}
		destAmount = swapQuote.Output.Amount
		logics = append(logics, router.NewSwapTokenLogic(swapQuote))
	}

	supply := router.TokenAmount{Token: supplyToken, Amount: destAmount}
	if destIsBase {
		logics = append(logics, router.NewSupplyBaseLogic(marketID, supply, router.BPSBase))
	} else {
		logics = append(logics, router.NewSupplyCollateralLogic(marketID, supply, router.BPSBase))
	}

	estimate, err := q.router.EstimateRouterData(ctx, router.RouterData{ChainID: q.chainID(), Account: account, Logics: logics}, req.Permit2Type)
	if err != nil {
		return nil, err
	}
	result.applyEstimate(estimate, logics)

	target := newProjection(info)
	if destIsBase {
		target.SupplyUSD = target.SupplyUSD.Add(dec(destAmount).Mul(dec(info.BaseTokenPrice)))
	} else {
		supplyUSD := dec(destAmount).Mul(dec(destCollateral.AssetPrice))
		target.CollateralUSD = target.CollateralUSD.Add(supplyUSD)
		target.BorrowCapacityUSD = target.BorrowCapacityUSD.Add(supplyUSD.Mul(dec(destCollateral.BorrowCollateralFactor)))
		target.LiquidationLimitUSD = target.LiquidationLimitUSD.Add(supplyUSD.Mul(dec(destCollateral.LiquidateCollateralFactor)))
	}

	result.Quotation = ZapSupplyQuotation{
		DestAmount:      destAmount,
		CurrentPosition: current,
		TargetPosition:  target.position(),
	}
	return result, nil
}
