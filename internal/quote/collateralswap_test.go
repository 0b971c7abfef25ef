package quote

import (
	"context"
	"testing"

	"github.com/gustavo/comet-kit/internal/router"
)

func TestCollateralSwap(t *testing.T) {
	stub := newStubRouter(t)
	stub.flashQuotes = []router.FlashLoanQuotation{{
		ProtocolID: "balancer-v2",
		Loans:      []router.TokenAmount{{Token: wethToken, Amount: "0.4995"}},
		Repays:     []router.TokenAmount{{Token: wethToken, Amount: "0.5"}},
	}}
	stub.swapQuotes = []router.SwapQuotation{{
		Input:  router.TokenAmount{Token: wethToken, Amount: "0.4995"},
		Output: router.TokenAmount{Token: wbtcToken, Amount: "0.0332"},
	}}
	q := newTestQuoter(t, fixtureInfo(), stub)

	result, err := q.CollateralSwap(context.Background(), "USDC", CollateralSwapRequest{
		Account:   testAccount,
		SrcToken:  &wethToken,
		SrcAmount: "0.5",
		DestToken: &wbtcToken,
		Slippage:  100,
	})
	if err != nil {
		t.Fatalf("CollateralSwap failed: %v", err)
	}

	// The loan is sized so its repays settle the withdrawal, and the swap
	// consumes the loaned amount.
	if len(stub.flashReqs) != 1 || len(stub.flashReqs[0].Repays) != 1 || stub.flashReqs[0].Repays[0].Amount != "0.5" {
		t.Fatalf("flash loan must be requested by repays: %+v", stub.flashReqs)
	}
	if len(stub.swapReqs) != 1 || stub.swapReqs[0].Input.Amount != "0.4995" {
		t.Fatalf("swap must consume the loaned amount: %+v", stub.swapReqs)
	}
	assertRIDs(t, result.Logics,
		"utility:flash-loan-aggregator",
		"paraswap-v5:swap-token",
		"compound-v3:supply-collateral",
		"compound-v3:withdraw-collateral",
		"utility:flash-loan-aggregator",
	)

	quotation := result.Quotation.(CollateralSwapQuotation)
	if quotation.DestAmount != "0.0332" {
		t.Errorf("DestAmount = %q", quotation.DestAmount)
	}
	target := quotation.TargetPosition
	if target.BorrowUSD != "500" {
		t.Errorf("target BorrowUSD = %q", target.BorrowUSD)
	}
	if target.CollateralUSD != "1996" {
		t.Errorf("target CollateralUSD = %q", target.CollateralUSD)
	}
	if target.Utilization != "0.3396" {
		t.Errorf("target Utilization = %q", target.Utilization)
	}
	if target.LiquidationThreshold != "0.7876" {
		t.Errorf("target LiquidationThreshold = %q", target.LiquidationThreshold)
	}
	if target.HealthRate != "3.14" {
		t.Errorf("target HealthRate = %q", target.HealthRate)
	}
}

func TestCollateralSwapValidation(t *testing.T) {
	ctx := context.Background()

	_, err := newTestQuoter(t, fixtureInfo(), newStubRouter(t)).CollateralSwap(ctx, "USDC", CollateralSwapRequest{
		Account:   testAccount,
		SrcToken:  &usdcToken,
		SrcAmount: "1",
		DestToken: &wbtcToken,
	})
	assertBadRequest(t, err, "400.5", "source token is not collateral")

	_, err = newTestQuoter(t, fixtureInfo(), newStubRouter(t)).CollateralSwap(ctx, "USDC", CollateralSwapRequest{
		Account:   testAccount,
		SrcToken:  &wethToken,
		SrcAmount: "2",
		DestToken: &wbtcToken,
	})
	assertBadRequest(t, err, "400.6", "source amount is greater than available amount")

	_, err = newTestQuoter(t, fixtureInfo(), newStubRouter(t)).CollateralSwap(ctx, "USDC", CollateralSwapRequest{
		Account:   testAccount,
		SrcToken:  &wethToken,
		SrcAmount: "0.5",
		DestToken: &usdcToken,
	})
	assertBadRequest(t, err, "400.7", "destination token is not collateral")
}
