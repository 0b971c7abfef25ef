package quote

import (
	"context"
	"testing"

	"github.com/gustavo/comet-kit/internal/router"
)

func TestZapBorrowIntoTargetToken(t *testing.T) {
	stub := newStubRouter(t)
	stub.swapQuotes = []router.SwapQuotation{{
		Input:  router.TokenAmount{Token: usdcToken, Amount: "300"},
		Output: router.TokenAmount{Token: wbtcToken, Amount: "0.00998"},
	}}
	q := newTestQuoter(t, fixtureInfo(), stub)

	result, err := q.ZapBorrow(context.Background(), "USDC", ZapBorrowRequest{
		Account:     testAccount,
		Amount:      "300",
		TargetToken: &wbtcToken,
		Slippage:    100,
	})
	if err != nil {
		t.Fatalf("ZapBorrow failed: %v", err)
	}

	assertRIDs(t, result.Logics, "compound-v3:borrow", "paraswap-v5:swap-token")
	if stub.permit2s[0] != "" {
		t.Fatalf("borrow estimate must not carry a permit2 type, got %q", stub.permit2s[0])
	}

	quotation := result.Quotation.(ZapBorrowQuotation)
	if quotation.TargetTokenAmount != "0.00998" {
		t.Errorf("TargetTokenAmount = %q", quotation.TargetTokenAmount)
	}
	// Debt is projected from the borrowed base amount, not the swap output.
	target := quotation.TargetPosition
	if target.BorrowUSD != "800" {
		t.Errorf("target BorrowUSD = %q", target.BorrowUSD)
	}
	if target.Utilization != "0.5161" {
		t.Errorf("target Utilization = %q", target.Utilization)
	}
	if target.HealthRate != "2.06" {
		t.Errorf("target HealthRate = %q", target.HealthRate)
	}
}

func TestZapBorrowBaseToken(t *testing.T) {
	stub := newStubRouter(t)
	q := newTestQuoter(t, fixtureInfo(), stub)

	result, err := q.ZapBorrow(context.Background(), "USDC", ZapBorrowRequest{
		Account:     testAccount,
		Amount:      "300",
		TargetToken: &usdcToken,
	})
	if err != nil {
		t.Fatalf("ZapBorrow failed: %v", err)
	}
	assertRIDs(t, result.Logics, "compound-v3:borrow")
	if len(stub.swapReqs) != 0 {
		t.Fatal("borrowing the base token must not quote a swap")
	}
	if got := result.Quotation.(ZapBorrowQuotation).TargetTokenAmount; got != "300" {
		t.Errorf("TargetTokenAmount = %q", got)
	}
}

func TestZapBorrowValidation(t *testing.T) {
	ctx := context.Background()

	supplied := fixtureInfo()
	supplied.SupplyBalance = "100"
	supplied.SupplyUSD = "100"
	_, err := newTestQuoter(t, supplied, newStubRouter(t)).ZapBorrow(ctx, "USDC", ZapBorrowRequest{
		Account:     testAccount,
		Amount:      "300",
		TargetToken: &usdcToken,
	})
	assertBadRequest(t, err, "400.5", "supply USD is not zero")

	_, err = newTestQuoter(t, fixtureInfo(), newStubRouter(t)).ZapBorrow(ctx, "USDC", ZapBorrowRequest{
		Account:     testAccount,
		Amount:      "2000",
		TargetToken: &usdcToken,
	})
	assertBadRequest(t, err, "400.6", "borrow amount is greater than available amount")

	debtFree := fixtureInfo()
	debtFree.BorrowBalance = "0"
	debtFree.BorrowUSD = "0"
	_, err = newTestQuoter(t, debtFree, newStubRouter(t)).ZapBorrow(ctx, "USDC", ZapBorrowRequest{
		Account:     testAccount,
		Amount:      "50",
		TargetToken: &usdcToken,
	})
	assertBadRequest(t, err, "400.7", "target borrow balance is less than base borrow min of 100 USDC")
}
