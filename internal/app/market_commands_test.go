package app

import (
	"context"
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/rpc"

	"github.com/gustavo/comet-kit/internal/comet"
	"github.com/gustavo/comet-kit/internal/registry"
)

// offlineCaller fails every batch call; tests using it prove the code path
// under test never reaches the chain.
type offlineCaller struct{}

func (offlineCaller) BatchCallContext(context.Context, []rpc.BatchElem) error {
	return errors.New("no chain access in this test")
}

func newOfflineSession(t *testing.T) *chainSession {
	t.Helper()
	fetcher, err := comet.NewFetcher(offlineCaller{}, "")
	if err != nil {
		t.Fatalf("NewFetcher failed: %v", err)
	}
	return &chainSession{fetcher: fetcher}
}

func TestResolveTokenNativePseudoAddress(t *testing.T) {
	session := newOfflineSession(t)
	market := &comet.Market{
		ChainID:   137,
		ID:        "USDC",
		BaseToken: comet.Token{ChainID: 137, Address: "0x2791Bca1f2de4661ED88A30C99A7a9449Aa84174", Decimals: 6, Symbol: "USDC"},
	}

	token, err := resolveToken(context.Background(), session, market, registry.NativeTokenAddress)
	if err != nil {
		t.Fatalf("resolve native token: %v", err)
	}
	if token.Address != registry.NativeTokenAddress || token.Symbol != "MATIC" || token.Decimals != 18 {
		t.Fatalf("unexpected native token %+v", token)
	}
}

// The wrapped-native address resolves to the natively-presented base token
// without a metadata read.
func TestResolveTokenWrappedNativeMatchesBase(t *testing.T) {
	session := newOfflineSession(t)
	nativeETH, ok := comet.NativeToken(1)
	if !ok {
		t.Fatal("mainnet native token missing")
	}
	market := &comet.Market{ChainID: 1, ID: "ETH", BaseToken: nativeETH}

	token, err := resolveToken(context.Background(), session, market, "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2")
	if err != nil {
		t.Fatalf("resolve wrapped native: %v", err)
	}
	if token.Address != registry.NativeTokenAddress || token.Symbol != "ETH" {
		t.Fatalf("unexpected token %+v", token)
	}
}
