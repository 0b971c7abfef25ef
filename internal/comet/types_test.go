package comet

import (
	"testing"

	"github.com/gustavo/comet-kit/internal/registry"
)

func TestNativeToken(t *testing.T) {
	eth, ok := NativeToken(1)
	if !ok {
		t.Fatal("mainnet should have a native token")
	}
	if eth.Address != registry.NativeTokenAddress || eth.Symbol != "ETH" || eth.Decimals != 18 {
		t.Fatalf("unexpected native token %+v", eth)
	}
	matic, ok := NativeToken(137)
	if !ok || matic.Symbol != "MATIC" {
		t.Fatalf("unexpected polygon native token %+v", matic)
	}
	if _, ok := NativeToken(10); ok {
		t.Fatal("unconfigured chain should have no native token")
	}
}

func TestTokenIsTreatsNativeAndWrappedAsEqual(t *testing.T) {
	eth, _ := NativeToken(1)
	weth := Token{ChainID: 1, Address: "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2", Decimals: 18, Symbol: "WETH"}
	if !eth.Is(weth) || !weth.Is(eth) {
		t.Fatal("native ETH and mainnet WETH should compare equal")
	}
	if !weth.IsAddress(registry.NativeTokenAddress) {
		t.Fatal("WETH should match the native pseudo-address")
	}

	usdc := Token{ChainID: 1, Address: "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48", Decimals: 6, Symbol: "USDC"}
	if eth.Is(usdc) {
		t.Fatal("native ETH should not match USDC")
	}

	// Another chain's wrapped native is a different asset.
	polygonWETH := Token{ChainID: 137, Address: "0x7ceB23fD6bC0adD59E62ac25578270cFf1b9f619", Decimals: 18, Symbol: "WETH"}
	if eth.Is(polygonWETH) {
		t.Fatal("native ETH should not match polygon's bridged WETH")
	}
}

func TestTokenWrapped(t *testing.T) {
	eth, _ := NativeToken(1)
	wrapped := eth.Wrapped()
	if wrapped.Address != "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2" || wrapped.Symbol != "WETH" {
		t.Fatalf("unexpected wrapped token %+v", wrapped)
	}
	usdc := Token{ChainID: 1, Address: "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48", Decimals: 6, Symbol: "USDC"}
	if got := usdc.Wrapped(); got != usdc {
		t.Fatalf("ERC20 should wrap to itself, got %+v", got)
	}
}

func TestMarketMatchesNativeBaseToken(t *testing.T) {
	eth, _ := NativeToken(1)
	market := &Market{ChainID: 1, ID: "ETH", BaseToken: eth}
	if !market.IsBaseToken("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2") {
		t.Fatal("WETH address should match the natively-presented base token")
	}
	if !market.IsBaseToken(registry.NativeTokenAddress) {
		t.Fatal("native pseudo-address should match the base token")
	}
	if market.IsBaseToken("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48") {
		t.Fatal("USDC should not match the ETH base token")
	}
}

func TestFindCollateralByWrappedAddress(t *testing.T) {
	matic, _ := NativeToken(137)
	info := &MarketInfo{Collaterals: []CollateralInfo{{Asset: matic, CollateralBalance: "5"}}}
	collateral, ok := info.FindCollateral("0x0d500B1d8E8eF31E21C99d1Db9A6444d3ADf1270")
	if !ok {
		t.Fatal("WMATIC address should resolve the natively-presented collateral")
	}
	if collateral.CollateralBalance != "5" {
		t.Fatalf("unexpected collateral %+v", collateral)
	}
}
