package quote

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/gustavo/comet-kit/internal/comet"
	clierr "github.com/gustavo/comet-kit/internal/errors"
	"github.com/gustavo/comet-kit/internal/router"
)

type ZapWithdrawRequest struct {
	Account     string
	SrcToken    *comet.Token
	SrcAmount   string
	DestToken   *comet.Token
	Slippage    int
	Permit2Type string
}

type ZapWithdrawQuotation struct {
	DestAmount      string   `json:"destAmount"`
	CurrentPosition Position `json:"currentPosition"`
	TargetPosition  Position `json:"targetPosition"`
}

// ZapWithdraw withdraws supplied base token or a collateral and optionally
// swaps the proceeds into a destination token. Withdrawals are validated
// against the account's balances before any routing call.
func (q *Quoter) ZapWithdraw(ctx context.Context, marketID string, req ZapWithdrawRequest) (*QuoteResult, error) {
	p, err := q.prepare(ctx, marketID, req.Account, req.SrcAmount)
	if err != nil {
		return nil, err
	}
	market, info, account, srcAmount := p.market, p.info, p.account, p.amount

	current := currentPosition(info)
	result := emptyResult()
	result.Quotation = ZapWithdrawQuotation{DestAmount: "0", CurrentPosition: current, TargetPosition: current}
	if req.SrcToken == nil || req.DestToken == nil || !p.active {
		return result, nil
	}

	var logics []router.Logic
	srcIsBase := market.IsBaseToken(req.SrcToken.Address)
	var srcCollateral comet.CollateralInfo
	realAmount := srcAmount
	if srcIsBase {
		if srcAmount.GreaterThan(dec(info.SupplyBalance)) {
			return nil, clierr.NewBadRequest("400.5", "source amount is greater than available base amount")
		}
		// Withdrawing straight to the destination pays out in its requested
		// form; a follow-up swap needs the wrapped ERC20 as its input.
		withdrawalToken := req.SrcToken.Wrapped()
		if market.IsBaseToken(req.DestToken.Address) {
			withdrawalToken = *req.DestToken
		}
		// The wrapper token pulled through permit2 arrives 2 wei short, and
		// the withdrawal pays out 1 wei less than requested.
		wei := decimal.New(1, -info.BaseToken.Decimals)
		realAmount = realAmount.Sub(wei.Mul(decimal.NewFromInt(2)))
		logics = append(logics, router.NewWithdrawBaseLogic(marketID,
			router.TokenAmount{Token: withdrawalToken, Amount: realAmount.String()}))
		realAmount = realAmount.Sub(wei)
	} else {
		var ok bool
		srcCollateral, ok = info.FindCollateral(req.SrcToken.Address)
		if !ok {
			return nil, clierr.NewBadRequest("400.6", "source token is not collateral nor base")
		}
		if srcAmount.GreaterThan(dec(srcCollateral.CollateralBalance)) {
			return nil, clierr.NewBadRequest("400.7", "source amount is greater than available collateral amount")
		}
		withdrawalToken := req.SrcToken.Wrapped()
		if req.DestToken.Is(*req.SrcToken) {
			withdrawalToken = *req.DestToken
		}
		logics = append(logics, router.NewWithdrawCollateralLogic(marketID,
			router.TokenAmount{Token: withdrawalToken, Amount: realAmount.String()}))
	}

	destAmount := realAmount.String()
	if !req.SrcToken.Is(*req.DestToken) {
		swapQuote, err := q.router.GetSwapTokenQuotation(ctx, q.chainID(), router.SwapQuoteRequest{
			Input:    &router.TokenAmount{Token: req.SrcToken.Wrapped(), Amount: realAmount.String()},
			TokenOut: req.DestToken,
			Slippage: req.Slippage,
		})
		if err != nil {
			return nil, err
		}
		destAmount = swapQuote.Output.Amount
		logics = append(logics, router.NewSwapTokenLogic(swapQuote))
	}

	estimate, err := q.router.EstimateRouterData(ctx, router.RouterData{ChainID: q.chainID(), Account: account, Logics: logics}, req.Permit2Type)
	if err != nil {
		return nil, err
	}
	result.applyEstimate(estimate, logics)

	target := newProjection(info)
	if srcIsBase {
		target.SupplyUSD = target.SupplyUSD.Sub(realAmount.Mul(dec(info.BaseTokenPrice)))
	} else {
		withdrawUSD := realAmount.Mul(dec(srcCollateral.AssetPrice))
		target.CollateralUSD = target.CollateralUSD.Sub(withdrawUSD)
		target.BorrowCapacityUSD = target.BorrowCapacityUSD.Sub(withdrawUSD.Mul(dec(srcCollateral.BorrowCollateralFactor)))
		target.LiquidationLimitUSD = target.LiquidationLimitUSD.Sub(withdrawUSD.Mul(dec(srcCollateral.LiquidateCollateralFactor)))
	}

	result.Quotation = ZapWithdrawQuotation{
		DestAmount:      destAmount,
		CurrentPosition: current,
		TargetPosition:  target.position(),
	}
	return result, nil
}
