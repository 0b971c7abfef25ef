package comet

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/gustavo/comet-kit/internal/cache"
	"github.com/gustavo/comet-kit/internal/calc"
	clierr "github.com/gustavo/comet-kit/internal/errors"
	"github.com/gustavo/comet-kit/internal/registry"
)

// Service resolves markets for one chain and assembles MarketInfo snapshots.
// Market configuration is write-once per market id: first access reads the
// chain, later accesses hit the in-process map, and the sqlite store lets
// short-lived processes skip the discovery round trips entirely.
type Service struct {
	fetcher *Fetcher
	chainID int64
	store   *cache.Store
	ttl     time.Duration

	mu      sync.Mutex
	markets map[string]*Market
}

func NewService(fetcher *Fetcher, chainID int64, store *cache.Store, ttl time.Duration) *Service {
	return &Service{
		fetcher: fetcher,
		chainID: chainID,
		store:   store,
		ttl:     ttl,
		markets: map[string]*Market{},
	}
}

// ChainID is the chain this service reads.
func (s *Service) ChainID() int64 { return s.chainID }

// GetMarket returns the static configuration for marketID. Unknown markets
// fail with the stable "market does not exist" reason.
func (s *Service) GetMarket(ctx context.Context, marketID string) (*Market, error) {
	cfg, ok := registry.FindMarket(s.chainID, marketID)
	if !ok {
		return nil, clierr.NewBadRequest("400.1", "market does not exist")
	}

	s.mu.Lock()
	market, hit := s.markets[cfg.ID]
	s.mu.Unlock()
	if hit {
		return market, nil
	}

	// The persistent cache only serves reads at the chain head: a pinned
	// block may predate the current asset listing.
	usePersistent := s.store != nil && s.fetcher.BlockTag() == "latest"
	key := fmt.Sprintf("market:%d:%s", s.chainID, cfg.ID)
	if usePersistent {
		if raw, hit, err := s.store.Get(key); err == nil && hit {
			cached := new(Market)
			if err := json.Unmarshal(raw, cached); err == nil && cached.CometAddress != "" {
				s.remember(cfg.ID, cached)
				return cached, nil
			}
		}
	}

	market, err := s.fetcher.FetchMarket(ctx, cfg)
	if err != nil {
		return nil, err
	}
	s.remember(cfg.ID, market)
	if usePersistent {
		if raw, err := json.Marshal(market); err == nil {
			_ = s.store.Set(key, raw, s.ttl)
		}
	}
	return market, nil
}

// remember is idempotent: concurrent first accesses fetch the same immutable
// configuration, so the first write wins and the rest are dropped.
func (s *Service) remember(marketID string, market *Market) {
	s.mu.Lock()
	if _, exists := s.markets[marketID]; !exists {
		s.markets[marketID] = market
	}
	s.mu.Unlock()
}

// GetMarketInfo builds the full snapshot for a market and optional account.
// Account must already be checksum-normalized (or empty for a market-only
// view); balances read as zero without one.
func (s *Service) GetMarketInfo(ctx context.Context, marketID, account string) (*MarketInfo, error) {
	market, err := s.GetMarket(ctx, marketID)
	if err != nil {
		return nil, err
	}
	snapshot, err := s.fetcher.FetchSnapshot(ctx, market, account)
	if err != nil {
		return nil, err
	}
	return buildMarketInfo(market, snapshot), nil
}

func buildMarketInfo(market *Market, snapshot *Snapshot) *MarketInfo {
	baseDecimals := market.BaseToken.Decimals
	basePrice := snapshot.BaseTokenPrice
	supplyAPR := calc.APR(snapshot.SupplyRate)
	borrowAPR := calc.APR(snapshot.BorrowRate)

	supplyUSD := decimal.Zero
	if !snapshot.SupplyBalance.IsZero() {
		supplyUSD = snapshot.SupplyBalance.Mul(basePrice)
	}
	borrowUSD := decimal.Zero
	if !snapshot.BorrowBalance.IsZero() {
		borrowUSD = snapshot.BorrowBalance.Mul(basePrice)
	}

	totalCollateralUSD := decimal.Zero
	totalBorrowCapacityUSD := decimal.Zero
	liquidationLimitUSD := decimal.Zero
	collaterals := make([]CollateralInfo, len(market.Assets))
	for i, asset := range market.Assets {
		assetPrice := snapshot.AssetPrices[i]
		balance := snapshot.CollateralBalances[i]

		collateralUSD := decimal.Zero
		capacityUSD := decimal.Zero
		capacity := "0"
		if !balance.IsZero() {
			collateralUSD = balance.Mul(assetPrice)
			totalCollateralUSD = totalCollateralUSD.Add(collateralUSD)

			capacityUSD = collateralUSD.Mul(asset.BorrowCollateralFactor)
			totalBorrowCapacityUSD = totalBorrowCapacityUSD.Add(capacityUSD)
			capacity = calc.TokenUnits(capacityUSD, basePrice, baseDecimals).String()

			liquidationLimitUSD = liquidationLimitUSD.Add(collateralUSD.Mul(asset.LiquidateCollateralFactor))
		}

		collaterals[i] = CollateralInfo{
			Asset:                     asset.Token,
			AssetPrice:                assetPrice.String(),
			BorrowCollateralFactor:    asset.BorrowCollateralFactor.String(),
			LiquidateCollateralFactor: asset.LiquidateCollateralFactor.String(),
			CollateralBalance:         balance.String(),
			CollateralUSD:             calc.FormatUSD(collateralUSD),
			BorrowCapacity:            capacity,
			BorrowCapacityUSD:         calc.FormatUSD(capacityUSD),
		}
	}

	borrowCapacity := decimal.Zero
	availableToBorrow := decimal.Zero
	availableToBorrowUSD := "0"
	if !totalBorrowCapacityUSD.IsZero() {
		borrowCapacity = calc.TokenUnits(totalBorrowCapacityUSD, basePrice, baseDecimals)
		availableToBorrow = borrowCapacity.Sub(snapshot.BorrowBalance)
		availableToBorrowUSD = calc.FormatUSD(availableToBorrow.Mul(basePrice))
	}

	liquidationThreshold := "0"
	liquidationRisk := decimal.Zero
	liquidationPointUSD := decimal.Zero
	liquidationPoint := "0"
	if !liquidationLimitUSD.IsZero() {
		liquidationThreshold = calc.LiquidationThreshold(liquidationLimitUSD, totalCollateralUSD)
		liquidationRisk = borrowUSD.Div(liquidationLimitUSD).Round(2)
		liquidationPointUSD = totalCollateralUSD.Mul(liquidationRisk)
		liquidationPoint = calc.TokenUnits(liquidationPointUSD, basePrice, baseDecimals).String()
	}

	thresholdValue, _ := decimal.NewFromString(liquidationThreshold)
	return &MarketInfo{
		BaseToken:            market.BaseToken,
		BaseTokenPrice:       basePrice.String(),
		BaseBorrowMin:        market.BaseBorrowMin.String(),
		SupplyAPR:            supplyAPR,
		SupplyBalance:        snapshot.SupplyBalance.String(),
		SupplyUSD:            calc.FormatUSD(supplyUSD),
		BorrowAPR:            borrowAPR,
		BorrowBalance:        snapshot.BorrowBalance.String(),
		BorrowUSD:            calc.FormatUSD(borrowUSD),
		CollateralUSD:        calc.FormatUSD(totalCollateralUSD),
		BorrowCapacity:       borrowCapacity.String(),
		BorrowCapacityUSD:    calc.FormatUSD(totalBorrowCapacityUSD),
		AvailableToBorrow:    availableToBorrow.String(),
		AvailableToBorrowUSD: availableToBorrowUSD,
		LiquidationLimit:     calc.FormatUSD(liquidationLimitUSD),
		LiquidationThreshold: liquidationThreshold,
		LiquidationRisk:      liquidationRisk.String(),
		LiquidationPoint:     liquidationPoint,
		LiquidationPointUSD:  calc.FormatUSD(liquidationPointUSD),
		Utilization:          calc.Utilization(totalBorrowCapacityUSD, borrowUSD),
		HealthRate:           calc.HealthRate(totalCollateralUSD, borrowUSD, thresholdValue),
		NetAPR:               netAPRFromStrings(supplyUSD, supplyAPR, borrowUSD, borrowAPR, totalCollateralUSD),
		Collaterals:          collaterals,
	}
}

func netAPRFromStrings(supplyUSD decimal.Decimal, supplyAPR string, borrowUSD decimal.Decimal, borrowAPR string, collateralUSD decimal.Decimal) string {
	supplyRate, _ := decimal.NewFromString(supplyAPR)
	borrowRate, _ := decimal.NewFromString(borrowAPR)
	return calc.NetAPR(supplyUSD, supplyUSD.Mul(supplyRate), borrowUSD.Mul(borrowRate), collateralUSD)
}
