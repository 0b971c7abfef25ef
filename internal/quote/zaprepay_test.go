package quote

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/gustavo/comet-kit/internal/router"
)

func TestZapRepayClampsToDebt(t *testing.T) {
	stub := newStubRouter(t)
	stub.swapQuotes = []router.SwapQuotation{{
		Input:  router.TokenAmount{Token: wethToken, Amount: "0.5"},
		Output: router.TokenAmount{Token: usdcToken, Amount: "600"},
	}}
	q := newTestQuoter(t, fixtureInfo(), stub)

	result, err := q.ZapRepay(context.Background(), "USDC", ZapRepayRequest{
		Account:     testAccount,
		SrcToken:    &wethToken,
		Amount:      "0.5",
		Slippage:    100,
		Permit2Type: "permit",
	})
	if err != nil {
		t.Fatalf("ZapRepay failed: %v", err)
	}

	assertRIDs(t, result.Logics, "paraswap-v5:swap-token", "compound-v3:repay")
	if stub.permit2s[0] != "permit" {
		t.Fatalf("permit2 type not forwarded: %q", stub.permit2s[0])
	}

	// The swap yields 600 base but only 500 is owed; the repay must carry the
	// clamped amount.
	var fields struct {
		Borrower   string             `json:"borrower"`
		Input      router.TokenAmount `json:"input"`
		BalanceBps int                `json:"balanceBps"`
	}
	if err := json.Unmarshal(result.Logics[1].Fields, &fields); err != nil {
		t.Fatalf("decode repay fields: %v", err)
	}
	if fields.Input.Amount != "500" {
		t.Errorf("repay amount = %q, want clamped 500", fields.Input.Amount)
	}
	if fields.Borrower != testAccount {
		t.Errorf("repay borrower = %q", fields.Borrower)
	}
	if fields.BalanceBps != router.BPSBase {
		t.Errorf("repay balanceBps = %d", fields.BalanceBps)
	}

	quotation := result.Quotation.(ZapRepayQuotation)
	if quotation.TargetTokenAmount != "500" {
		t.Errorf("TargetTokenAmount = %q", quotation.TargetTokenAmount)
	}
	target := quotation.TargetPosition
	if target.BorrowUSD != "0" {
		t.Errorf("target BorrowUSD = %q", target.BorrowUSD)
	}
	if target.HealthRate != "Infinity" {
		t.Errorf("target HealthRate = %q", target.HealthRate)
	}
	if target.Utilization != "0" {
		t.Errorf("target Utilization = %q", target.Utilization)
	}
}

func TestZapRepayWithBaseToken(t *testing.T) {
	stub := newStubRouter(t)
	q := newTestQuoter(t, fixtureInfo(), stub)

	result, err := q.ZapRepay(context.Background(), "USDC", ZapRepayRequest{
		Account:  testAccount,
		SrcToken: &usdcToken,
		Amount:   "200",
	})
	if err != nil {
		t.Fatalf("ZapRepay failed: %v", err)
	}
	assertRIDs(t, result.Logics, "compound-v3:repay")
	if len(stub.swapReqs) != 0 {
		t.Fatal("repaying with the base token must not quote a swap")
	}
	quotation := result.Quotation.(ZapRepayQuotation)
	if quotation.TargetTokenAmount != "200" {
		t.Errorf("TargetTokenAmount = %q", quotation.TargetTokenAmount)
	}
	if quotation.TargetPosition.BorrowUSD != "300" {
		t.Errorf("target BorrowUSD = %q", quotation.TargetPosition.BorrowUSD)
	}
}

func TestZapRepayWithoutDebt(t *testing.T) {
	info := fixtureInfo()
	info.BorrowBalance = "0"
	info.BorrowUSD = "0"
	q := newTestQuoter(t, info, newStubRouter(t))

	_, err := q.ZapRepay(context.Background(), "USDC", ZapRepayRequest{
		Account:  testAccount,
		SrcToken: &usdcToken,
		Amount:   "200",
	})
	assertBadRequest(t, err, "400.5", "borrow USD is zero")
}
