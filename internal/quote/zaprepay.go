package quote

import (
	"context"

	"github.com/gustavo/comet-kit/internal/comet"
	clierr "github.com/gustavo/comet-kit/internal/errors"
	"github.com/gustavo/comet-kit/internal/router"
)

type ZapRepayRequest struct {
	Account     string
	SrcToken    *comet.Token
	Amount      string
	Slippage    int
	Permit2Type string
}

type ZapRepayQuotation struct {
	TargetTokenAmount string   `json:"targetTokenAmount"`
	CurrentPosition   Position `json:"currentPosition"`
	TargetPosition    Position `json:"targetPosition"`
}

// ZapRepay swaps a source token into base token and repays debt with it. The
// repaid amount is clamped to the outstanding borrow balance so the target
// never overpays.
func (q *Quoter) ZapRepay(ctx context.Context, marketID string, req ZapRepayRequest) (*QuoteResult, error) {
	p, err := q.prepare(ctx, marketID, req.Account, req.Amount)
	if err != nil {
		return nil, err
	}
	market, info, account, amount := p.market, p.info, p.account, p.amount

	current := currentPosition(info)
	result := emptyResult()
	result.Quotation = ZapRepayQuotation{TargetTokenAmount: "0", CurrentPosition: current, TargetPosition: current}
	if req.SrcToken == nil || !p.active {
		return result, nil
	}

	if dec(info.BorrowUSD).IsZero() {
		return nil, clierr.NewBadRequest("400.5", "borrow USD is zero")
	}

	// A base-token source repays as given; anything else swaps into the
	// wrapped ERC20 the market holds and repays with that.
	var logics []router.Logic
	repayToken := *req.SrcToken
	targetTokenAmount := amount
	if !market.IsBaseToken(req.SrcToken.Address) {
		repayToken = info.BaseToken.Wrapped()
		swapQuote, err := q.router.GetSwapTokenQuotation(ctx, q.chainID(), router.SwapQuoteRequest{
			Input:    &router.TokenAmount{Token: *req.SrcToken, Amount: amount.String()},
			TokenOut: &repayToken,
			Slippage: req.Slippage,
		})
		if err != nil {
			return nil, err
		}
		targetTokenAmount = dec(swapQuote.Output.Amount)
		logics = append(logics, router.NewSwapTokenLogic(swapQuote))
	}

	if debt := dec(info.BorrowBalance); targetTokenAmount.GreaterThan(debt) {
		targetTokenAmount = debt
	}
	logics = append(logics, router.NewRepayLogic(marketID, account,
		router.TokenAmount{Token: repayToken, Amount: targetTokenAmount.String()}, router.BPSBase))

	estimate, err := q.router.EstimateRouterData(ctx, router.RouterData{ChainID: q.chainID(), Account: account, Logics: logics}, req.Permit2Type)
	if err != nil {
		return nil, err
	}
	result.applyEstimate(estimate, logics)

	target := newProjection(info)
	target.BorrowUSD = target.BorrowUSD.Sub(targetTokenAmount.Mul(dec(info.BaseTokenPrice)))

	result.Quotation = ZapRepayQuotation{
		TargetTokenAmount: targetTokenAmount.String(),
		CurrentPosition:   current,
		TargetPosition:    target.position(),
	}
	return result, nil
}
