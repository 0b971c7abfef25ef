package registry

import "strings"

// MarketConfig pins a Comet deployment. Everything else about the market
// (base token, collateral set, factors) is read from the chain and cached.
type MarketConfig struct {
	ChainID      int64
	ID           string
	Label        string
	CometAddress string
}

// MarketGroup is the per-chain listing served by the markets command.
type MarketGroup struct {
	ChainID int64          `json:"chainId"`
	Markets []MarketEntry `json:"markets"`
}

type MarketEntry struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

var marketsByChainID = map[int64][]MarketConfig{
	1: {
		{ChainID: 1, ID: "USDC", Label: "USDC", CometAddress: "0xc3d688B66703497DAA19211EEdff47f25384cdc3"},
		{ChainID: 1, ID: "ETH", Label: "ETH", CometAddress: "0xA17581A9E3356d9A858b789D68B4d866e593aE94"},
	},
	137: {
		{ChainID: 137, ID: "USDC", Label: "USDC", CometAddress: "0xF25212E676D1F7F89Cd72fFEe66158f541246445"},
	},
	8453: {
		{ChainID: 8453, ID: "USDC", Label: "USDC", CometAddress: "0xb125E6687d4313864e53df431d5425969c15Eb2F"},
		{ChainID: 8453, ID: "ETH", Label: "ETH", CometAddress: "0x46e6b214b524310239732D51387075E0e70970bf"},
	},
	42161: {
		{ChainID: 42161, ID: "USDC", Label: "USDC.e", CometAddress: "0xA5EDBDD9646f8dFF606d7448e414884C7d905dCA"},
	},
}

// NativeTokenAddress is the pseudo-address routing services and clients use
// for a chain's native token.
const NativeTokenAddress = "0xEeeeeEeeeEeEeeEeEeEeeEEEeeeeEeeeeeeeEEeE"

// NativeTokenConfig describes a chain's native token and the canonical
// wrapped ERC20 it trades as. Chain reads and router calls always use the
// wrapped form; presentation uses the native one.
type NativeTokenConfig struct {
	Symbol         string
	Name           string
	Decimals       int32
	WrappedAddress string
	WrappedSymbol  string
	WrappedName    string
}

var nativeTokenByChainID = map[int64]NativeTokenConfig{
	1: {
		Symbol: "ETH", Name: "Ethereum", Decimals: 18,
		WrappedAddress: "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2",
		WrappedSymbol:  "WETH", WrappedName: "Wrapped Ether",
	},
	137: {
		Symbol: "MATIC", Name: "Matic", Decimals: 18,
		WrappedAddress: "0x0d500B1d8E8eF31E21C99d1Db9A6444d3ADf1270",
		WrappedSymbol:  "WMATIC", WrappedName: "Wrapped Matic",
	},
	8453: {
		Symbol: "ETH", Name: "Ethereum", Decimals: 18,
		WrappedAddress: "0x4200000000000000000000000000000000000006",
		WrappedSymbol:  "WETH", WrappedName: "Wrapped Ether",
	},
	42161: {
		Symbol: "ETH", Name: "Ethereum", Decimals: 18,
		WrappedAddress: "0x82aF49447D8a07e3bd95BD0d56f35241523fBab1",
		WrappedSymbol:  "WETH", WrappedName: "Wrapped Ether",
	},
}

// NativeToken returns the native token configuration of a chain.
func NativeToken(chainID int64) (NativeTokenConfig, bool) {
	native, ok := nativeTokenByChainID[chainID]
	return native, ok
}

// IsNativeTokenAddress reports whether address is the native pseudo-address.
func IsNativeTokenAddress(address string) bool {
	return strings.EqualFold(strings.TrimSpace(address), NativeTokenAddress)
}

// WrappedNativeAddress returns the wrapped ERC20 address behind a chain's
// native token.
func WrappedNativeAddress(chainID int64) (string, bool) {
	native, ok := nativeTokenByChainID[chainID]
	if !ok {
		return "", false
	}
	return native.WrappedAddress, true
}

// The mainnet ETH market prices everything in wstETH feed units; readings are
// normalized against the canonical ETH/USD feed before USD conversion.
var customBaseTokenPriceFeedByChainID = map[int64]map[string]string{
	1: {
		"ETH": "0x5f4eC3Df9cbd43714FE2740f5E3616155c5b8419",
	},
}

// SupportedChain reports whether any Comet market is configured for chainID.
func SupportedChain(chainID int64) bool {
	_, ok := marketsByChainID[chainID]
	return ok
}

// FindMarket resolves a market id case-insensitively for a chain.
func FindMarket(chainID int64, marketID string) (MarketConfig, bool) {
	for _, market := range marketsByChainID[chainID] {
		if strings.EqualFold(market.ID, strings.TrimSpace(marketID)) {
			return market, true
		}
	}
	return MarketConfig{}, false
}

// CustomBaseTokenPriceFeed returns the override feed for a market, if any.
func CustomBaseTokenPriceFeed(chainID int64, marketID string) (string, bool) {
	feeds, ok := customBaseTokenPriceFeedByChainID[chainID]
	if !ok {
		return "", false
	}
	feed, ok := feeds[strings.ToUpper(strings.TrimSpace(marketID))]
	return feed, ok
}

// MarketGroups lists every configured market grouped by chain, in ascending
// chain id order.
func MarketGroups() []MarketGroup {
	chainIDs := make([]int64, 0, len(marketsByChainID))
	for chainID := range marketsByChainID {
		chainIDs = append(chainIDs, chainID)
	}
	for i := 0; i < len(chainIDs); i++ {
		for j := i + 1; j < len(chainIDs); j++ {
			if chainIDs[j] < chainIDs[i] {
				chainIDs[i], chainIDs[j] = chainIDs[j], chainIDs[i]
			}
		}
	}

	groups := make([]MarketGroup, 0, len(chainIDs))
	for _, chainID := range chainIDs {
		group := MarketGroup{ChainID: chainID}
		for _, market := range marketsByChainID[chainID] {
			group.Markets = append(group.Markets, MarketEntry{ID: market.ID, Label: market.Label})
		}
		groups = append(groups, group)
	}
	return groups
}
