// Package comet reads Compound V3 (Comet) market state over batched eth_call
// requests and assembles per-account market snapshots.
package comet

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/gustavo/comet-kit/internal/registry"
)

// Token identifies an asset on a chain, either an ERC20 or the native token
// behind its pseudo-address. Decimals ride along so amount strings can be
// converted without extra chain reads.
type Token struct {
	ChainID  int64  `json:"chainId"`
	Address  string `json:"address"`
	Decimals int32  `json:"decimals"`
	Symbol   string `json:"symbol"`
	Name     string `json:"name"`
}

// NativeToken builds the native token of a chain at its pseudo-address.
func NativeToken(chainID int64) (Token, bool) {
	native, ok := registry.NativeToken(chainID)
	if !ok {
		return Token{}, false
	}
	return Token{
		ChainID:  chainID,
		Address:  registry.NativeTokenAddress,
		Decimals: native.Decimals,
		Symbol:   native.Symbol,
		Name:     native.Name,
	}, true
}

// wrappedAddress resolves the native pseudo-address to the chain's wrapped
// ERC20 so comparisons treat the two forms as the same asset.
func wrappedAddress(chainID int64, address string) string {
	if registry.IsNativeTokenAddress(address) {
		if wrapped, ok := registry.WrappedNativeAddress(chainID); ok {
			return wrapped
		}
	}
	return address
}

// Is compares tokens by address, case-insensitively. A native token and its
// wrapped ERC20 compare equal.
func (t Token) Is(other Token) bool {
	return strings.EqualFold(wrappedAddress(t.ChainID, t.Address), wrappedAddress(other.ChainID, other.Address))
}

// IsAddress reports whether the token sits at the given address, counting the
// native pseudo-address and the wrapped ERC20 as the same asset.
func (t Token) IsAddress(address string) bool {
	return strings.EqualFold(wrappedAddress(t.ChainID, t.Address), wrappedAddress(t.ChainID, address))
}

// Wrapped returns the canonical wrapped ERC20 behind a native token. ERC20
// tokens return themselves.
func (t Token) Wrapped() Token {
	if !registry.IsNativeTokenAddress(t.Address) {
		return t
	}
	native, ok := registry.NativeToken(t.ChainID)
	if !ok {
		return t
	}
	return Token{
		ChainID:  t.ChainID,
		Address:  native.WrappedAddress,
		Decimals: native.Decimals,
		Symbol:   native.WrappedSymbol,
		Name:     native.WrappedName,
	}
}

// unwrapNative presents a chain's wrapped native ERC20 as the native token.
// Markets list WETH as the on-chain base or collateral asset; clients see ETH.
func unwrapNative(token Token) Token {
	wrapped, ok := registry.WrappedNativeAddress(token.ChainID)
	if !ok || !strings.EqualFold(token.Address, wrapped) {
		return token
	}
	native, _ := registry.NativeToken(token.ChainID)
	return Token{
		ChainID:  token.ChainID,
		Address:  registry.NativeTokenAddress,
		Decimals: token.Decimals,
		Symbol:   native.Symbol,
		Name:     native.Name,
	}
}

// AssetConfig is one collateral asset of a market. Factors are decimal
// fractions in [0, 1] converted from the contract's 1e18 fixed point.
type AssetConfig struct {
	Token                     Token           `json:"token"`
	PriceFeed                 string          `json:"priceFeed"`
	BorrowCollateralFactor    decimal.Decimal `json:"borrowCollateralFactor"`
	LiquidateCollateralFactor decimal.Decimal `json:"liquidateCollateralFactor"`
}

// Market is the static configuration of one Comet deployment. Built from
// chain reads on first access and immutable afterwards.
type Market struct {
	ChainID            int64           `json:"chainId"`
	ID                 string          `json:"id"`
	CometAddress       string          `json:"cometAddress"`
	BaseToken          Token           `json:"baseToken"`
	BaseTokenPriceFeed string          `json:"baseTokenPriceFeed"`
	// BaseTokenQuoteFeed, when set, normalizes every price reading against a
	// canonical feed before USD conversion.
	BaseTokenQuoteFeed string          `json:"baseTokenQuoteFeed,omitempty"`
	BaseBorrowMin      decimal.Decimal `json:"baseBorrowMin"`
	Assets             []AssetConfig   `json:"assets"`
}

// FindAsset resolves a collateral asset by token address.
func (m *Market) FindAsset(address string) (AssetConfig, bool) {
	for _, asset := range m.Assets {
		if asset.Token.IsAddress(address) {
			return asset, true
		}
	}
	return AssetConfig{}, false
}

// IsBaseToken reports whether address is the market's base token.
func (m *Market) IsBaseToken(address string) bool {
	return m.BaseToken.IsAddress(address)
}

// CollateralInfo is the per-asset, per-account slice of a market snapshot.
// All numeric fields are string-encoded decimals; USD figures carry 2 decimal
// places, token amounts the token's own precision.
type CollateralInfo struct {
	Asset                     Token  `json:"asset"`
	AssetPrice                string `json:"assetPrice"`
	BorrowCollateralFactor    string `json:"borrowCollateralFactor"`
	LiquidateCollateralFactor string `json:"liquidateCollateralFactor"`
	CollateralBalance         string `json:"collateralBalance"`
	CollateralUSD             string `json:"collateralUSD"`
	BorrowCapacity            string `json:"borrowCapacity"`
	BorrowCapacityUSD         string `json:"borrowCapacityUSD"`
}

// MarketInfo is the full current-state aggregate for one market and account.
// Built once per request and immutable afterwards.
type MarketInfo struct {
	BaseToken            Token            `json:"baseToken"`
	BaseTokenPrice       string           `json:"baseTokenPrice"`
	BaseBorrowMin        string           `json:"baseBorrowMin"`
	SupplyAPR            string           `json:"supplyAPR"`
	SupplyBalance        string           `json:"supplyBalance"`
	SupplyUSD            string           `json:"supplyUSD"`
	BorrowAPR            string           `json:"borrowAPR"`
	BorrowBalance        string           `json:"borrowBalance"`
	BorrowUSD            string           `json:"borrowUSD"`
	CollateralUSD        string           `json:"collateralUSD"`
	BorrowCapacity       string           `json:"borrowCapacity"`
	BorrowCapacityUSD    string           `json:"borrowCapacityUSD"`
	AvailableToBorrow    string           `json:"availableToBorrow"`
	AvailableToBorrowUSD string           `json:"availableToBorrowUSD"`
	LiquidationLimit     string           `json:"liquidationLimit"`
	LiquidationThreshold string           `json:"liquidationThreshold"`
	LiquidationRisk      string           `json:"liquidationRisk"`
	LiquidationPoint     string           `json:"liquidationPoint"`
	LiquidationPointUSD  string           `json:"liquidationPointUSD"`
	Utilization          string           `json:"utilization"`
	HealthRate           string           `json:"healthRate"`
	NetAPR               string           `json:"netAPR"`
	Collaterals          []CollateralInfo `json:"collaterals"`
}

// FindCollateral resolves a collateral entry by token address.
func (m *MarketInfo) FindCollateral(address string) (CollateralInfo, bool) {
	for _, collateral := range m.Collaterals {
		if collateral.Asset.IsAddress(address) {
			return collateral, true
		}
	}
	return CollateralInfo{}, false
}
