package comet

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/gustavo/comet-kit/internal/cache"
	"github.com/gustavo/comet-kit/internal/calc"
	clierr "github.com/gustavo/comet-kit/internal/errors"
)

func newFixtureService(t *testing.T) (*Service, *fakeChain) {
	t.Helper()
	fake := newFakeChain(t)
	stubPolygonMarket(fake)
	stubPolygonSnapshot(fake)
	fetcher, err := NewFetcher(fake, "")
	if err != nil {
		t.Fatalf("NewFetcher failed: %v", err)
	}
	return NewService(fetcher, 137, nil, 0), fake
}

// Figures cross-checked against the live polygon USDC market at block
// 45221016 for an account holding WETH collateral against a USDC debt.
func TestGetMarketInfoFixture(t *testing.T) {
	service, _ := newFixtureService(t)

	info, err := service.GetMarketInfo(context.Background(), "usdc", fixtureAccount.Hex())
	if err != nil {
		t.Fatalf("GetMarketInfo failed: %v", err)
	}

	checks := []struct {
		field string
		got   string
		want  string
	}{
		{"BaseTokenPrice", info.BaseTokenPrice, "0.99993"},
		{"BaseBorrowMin", info.BaseBorrowMin, "100"},
		{"SupplyAPR", info.SupplyAPR, "0.04"},
		{"BorrowAPR", info.BorrowAPR, "0.05"},
		{"SupplyBalance", info.SupplyBalance, "0"},
		{"SupplyUSD", info.SupplyUSD, "0"},
		{"BorrowBalance", info.BorrowBalance, "171.00092"},
		{"BorrowUSD", info.BorrowUSD, "170.99"},
		{"CollateralUSD", info.CollateralUSD, "350.78"},
		{"BorrowCapacityUSD", info.BorrowCapacityUSD, "271.85"},
		{"LiquidationThreshold", info.LiquidationThreshold, "0.825"},
		{"LiquidationRisk", info.LiquidationRisk, "0.59"},
		{"Utilization", info.Utilization, "0.629"},
		{"HealthRate", info.HealthRate, "1.69"},
		{"NetAPR", info.NetAPR, "-0.0244"},
	}
	for _, check := range checks {
		if check.got != check.want {
			t.Errorf("%s = %q, want %q", check.field, check.got, check.want)
		}
	}

	if len(info.Collaterals) != 1 {
		t.Fatalf("expected 1 collateral entry, got %d", len(info.Collaterals))
	}
	weth := info.Collaterals[0]
	if weth.Asset.Symbol != "WETH" {
		t.Fatalf("unexpected collateral asset %+v", weth.Asset)
	}
	if weth.CollateralBalance != "0.184444655243193813" {
		t.Errorf("CollateralBalance = %q", weth.CollateralBalance)
	}
	if weth.CollateralUSD != "350.78" {
		t.Errorf("CollateralUSD = %q", weth.CollateralUSD)
	}
	if weth.AssetPrice != "1901.8" {
		t.Errorf("AssetPrice = %q", weth.AssetPrice)
	}
}

func TestGetMarketInfoWithoutAccount(t *testing.T) {
	service, _ := newFixtureService(t)

	info, err := service.GetMarketInfo(context.Background(), "USDC", "")
	if err != nil {
		t.Fatalf("GetMarketInfo failed: %v", err)
	}
	if info.BorrowBalance != "0" || info.CollateralUSD != "0" {
		t.Fatalf("market-only view should read zero balances, got borrow=%s collateral=%s", info.BorrowBalance, info.CollateralUSD)
	}
	if info.HealthRate != calc.HealthRateInfinite {
		t.Fatalf("zero debt should report infinite health rate, got %q", info.HealthRate)
	}
	if info.SupplyAPR != "0.04" || info.BorrowAPR != "0.05" {
		t.Fatalf("rates should not depend on the account: %s/%s", info.SupplyAPR, info.BorrowAPR)
	}
}

func TestGetMarketMemoizesConfiguration(t *testing.T) {
	service, fake := newFixtureService(t)
	ctx := context.Background()

	if _, err := service.GetMarket(ctx, "USDC"); err != nil {
		t.Fatalf("first GetMarket failed: %v", err)
	}
	if fake.roundTrips != 3 {
		t.Fatalf("expected 3 round trips for discovery, got %d", fake.roundTrips)
	}
	if _, err := service.GetMarket(ctx, "usdc"); err != nil {
		t.Fatalf("second GetMarket failed: %v", err)
	}
	if fake.roundTrips != 3 {
		t.Fatalf("memoized lookup hit the chain: %d round trips", fake.roundTrips)
	}
}

func TestGetMarketUnknownID(t *testing.T) {
	service, _ := newFixtureService(t)

	_, err := service.GetMarket(context.Background(), "DOGE")
	typed, ok := clierr.As(err)
	if !ok || typed.Code != clierr.CodeBadRequest || typed.Reason != "400.1" {
		t.Fatalf("expected 400.1 bad request, got %v", err)
	}
}

func TestGetMarketPersistentCache(t *testing.T) {
	tmp := t.TempDir()
	store, err := cache.Open(filepath.Join(tmp, "cache.db"), filepath.Join(tmp, "cache.lock"))
	if err != nil {
		t.Fatalf("Open cache failed: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	ctx := context.Background()

	fake := newFakeChain(t)
	stubPolygonMarket(fake)
	fetcher, err := NewFetcher(fake, "latest")
	if err != nil {
		t.Fatalf("NewFetcher failed: %v", err)
	}
	warm := NewService(fetcher, 137, store, time.Minute)
	if _, err := warm.GetMarket(ctx, "USDC"); err != nil {
		t.Fatalf("warm GetMarket failed: %v", err)
	}

	// A fresh process with no chain connectivity must still resolve the
	// market from the store.
	offline := newFakeChain(t)
	offline.batchErr = errors.New("offline")
	offlineFetcher, err := NewFetcher(offline, "latest")
	if err != nil {
		t.Fatalf("NewFetcher failed: %v", err)
	}
	cold := NewService(offlineFetcher, 137, store, time.Minute)
	market, err := cold.GetMarket(ctx, "USDC")
	if err != nil {
		t.Fatalf("cached GetMarket failed: %v", err)
	}
	if market.BaseToken.Symbol != "USDC" || len(market.Assets) != 1 {
		t.Fatalf("cached market incomplete: %+v", market)
	}
	if offline.roundTrips != 0 {
		t.Fatalf("cached lookup hit the chain: %d round trips", offline.roundTrips)
	}
}

func TestGetMarketPinnedBlockSkipsStore(t *testing.T) {
	tmp := t.TempDir()
	store, err := cache.Open(filepath.Join(tmp, "cache.db"), filepath.Join(tmp, "cache.lock"))
	if err != nil {
		t.Fatalf("Open cache failed: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	ctx := context.Background()

	warmFake := newFakeChain(t)
	stubPolygonMarket(warmFake)
	warmFetcher, err := NewFetcher(warmFake, "latest")
	if err != nil {
		t.Fatalf("NewFetcher failed: %v", err)
	}
	if _, err := NewService(warmFetcher, 137, store, time.Minute).GetMarket(ctx, "USDC"); err != nil {
		t.Fatalf("warm GetMarket failed: %v", err)
	}

	pinnedFake := newFakeChain(t)
	stubPolygonMarket(pinnedFake)
	pinnedFetcher, err := NewFetcher(pinnedFake, "45221016")
	if err != nil {
		t.Fatalf("NewFetcher failed: %v", err)
	}
	if _, err := NewService(pinnedFetcher, 137, store, time.Minute).GetMarket(ctx, "USDC"); err != nil {
		t.Fatalf("pinned GetMarket failed: %v", err)
	}
	if pinnedFake.roundTrips != 3 {
		t.Fatalf("pinned block must bypass the store, got %d round trips", pinnedFake.roundTrips)
	}
}
