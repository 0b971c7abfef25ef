package comet

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/shopspring/decimal"

	clierr "github.com/gustavo/comet-kit/internal/errors"
	"github.com/gustavo/comet-kit/internal/registry"
)

// BatchCaller is the slice of rpc.Client the fetcher depends on. Satisfied by
// *rpc.Client; tests inject fakes.
type BatchCaller interface {
	BatchCallContext(ctx context.Context, b []rpc.BatchElem) error
}

// Fetcher issues batched eth_call reads against a Comet deployment and
// decodes the raw results. It holds no per-market state; callers cache.
type Fetcher struct {
	caller   BatchCaller
	blockTag string
	cometABI abi.ABI
	erc20ABI abi.ABI
}

func NewFetcher(caller BatchCaller, blockTag string) (*Fetcher, error) {
	cometABI, err := abi.JSON(strings.NewReader(registry.CometABI))
	if err != nil {
		return nil, fmt.Errorf("parse comet abi: %w", err)
	}
	erc20ABI, err := abi.JSON(strings.NewReader(registry.ERC20MetadataABI))
	if err != nil {
		return nil, fmt.Errorf("parse erc20 abi: %w", err)
	}
	if strings.TrimSpace(blockTag) == "" {
		blockTag = "latest"
	}
	return &Fetcher{
		caller:   caller,
		blockTag: blockTag,
		cometABI: cometABI,
		erc20ABI: erc20ABI,
	}, nil
}

// BlockTag is the block parameter every eth_call is pinned to.
func (f *Fetcher) BlockTag() string { return f.blockTag }

type chainCall struct {
	target common.Address
	parsed *abi.ABI
	method string
	args   []any
	result hexutil.Bytes
}

func (f *Fetcher) cometCall(comet common.Address, method string, args ...any) *chainCall {
	return &chainCall{target: comet, parsed: &f.cometABI, method: method, args: args}
}

func (f *Fetcher) erc20Call(token common.Address, method string) *chainCall {
	return &chainCall{target: token, parsed: &f.erc20ABI, method: method}
}

// run packs all calls, sends them as one JSON-RPC batch and checks per-call
// errors. Failures are reported as a single aggregate error; no retries here.
func (f *Fetcher) run(ctx context.Context, calls []*chainCall) error {
	elems := make([]rpc.BatchElem, len(calls))
	for i, c := range calls {
		data, err := c.parsed.Pack(c.method, c.args...)
		if err != nil {
			return clierr.Wrap(clierr.CodeInternal, fmt.Sprintf("encode %s call", c.method), err)
		}
		elems[i] = rpc.BatchElem{
			Method: "eth_call",
			Args:   []any{map[string]any{"to": c.target, "data": hexutil.Bytes(data)}, f.blockTag},
			Result: &calls[i].result,
		}
	}
	if err := f.caller.BatchCallContext(ctx, elems); err != nil {
		return clierr.Wrap(clierr.CodeUnavailable, "chain batch call failed", err)
	}
	for i := range elems {
		if elems[i].Error != nil {
			return clierr.Wrap(clierr.CodeUnavailable, fmt.Sprintf("%s call reverted", calls[i].method), elems[i].Error)
		}
	}
	return nil
}

func (c *chainCall) address() (common.Address, error) {
	values, err := c.parsed.Unpack(c.method, c.result)
	if err != nil {
		return common.Address{}, decodeError(c.method, err)
	}
	return values[0].(common.Address), nil
}

func (c *chainCall) bigInt() (*big.Int, error) {
	values, err := c.parsed.Unpack(c.method, c.result)
	if err != nil {
		return nil, decodeError(c.method, err)
	}
	switch v := values[0].(type) {
	case *big.Int:
		return v, nil
	case uint64:
		return new(big.Int).SetUint64(v), nil
	case uint8:
		return big.NewInt(int64(v)), nil
	default:
		return nil, clierr.New(clierr.CodeInternal, fmt.Sprintf("decode %s: unexpected result type %T", c.method, values[0]))
	}
}

func (c *chainCall) uint8() (uint8, error) {
	values, err := c.parsed.Unpack(c.method, c.result)
	if err != nil {
		return 0, decodeError(c.method, err)
	}
	return values[0].(uint8), nil
}

func (c *chainCall) text() (string, error) {
	values, err := c.parsed.Unpack(c.method, c.result)
	if err != nil {
		return "", decodeError(c.method, err)
	}
	return values[0].(string), nil
}

// assetInfo mirrors the tuple returned by Comet's getAssetInfo.
type assetInfo struct {
	Offset                    uint8
	Asset                     common.Address
	PriceFeed                 common.Address
	Scale                     uint64
	BorrowCollateralFactor    uint64
	LiquidateCollateralFactor uint64
	LiquidationFactor         uint64
	SupplyCap                 *big.Int
}

func (c *chainCall) assetInfo() (assetInfo, error) {
	values, err := c.parsed.Unpack(c.method, c.result)
	if err != nil {
		return assetInfo{}, decodeError(c.method, err)
	}
	info := *abi.ConvertType(values[0], new(assetInfo)).(*assetInfo)
	return info, nil
}

func decodeError(method string, err error) error {
	return clierr.Wrap(clierr.CodeInternal, fmt.Sprintf("decode %s result", method), err)
}

var (
	priceScale  = decimal.New(1, 8)
	factorScale = decimal.New(1, 18)
)

// FetchMarket reads the static configuration of a market in three round
// trips: base contract fields, asset infos plus base token metadata, and
// collateral token metadata.
func (f *Fetcher) FetchMarket(ctx context.Context, cfg registry.MarketConfig) (*Market, error) {
	comet := common.HexToAddress(cfg.CometAddress)

	baseTokenCall := f.cometCall(comet, "baseToken")
	baseFeedCall := f.cometCall(comet, "baseTokenPriceFeed")
	numAssetsCall := f.cometCall(comet, "numAssets")
	baseBorrowMinCall := f.cometCall(comet, "baseBorrowMin")
	if err := f.run(ctx, []*chainCall{baseTokenCall, baseFeedCall, numAssetsCall, baseBorrowMinCall}); err != nil {
		return nil, err
	}

	baseTokenAddress, err := baseTokenCall.address()
	if err != nil {
		return nil, err
	}
	baseFeed, err := baseFeedCall.address()
	if err != nil {
		return nil, err
	}
	numAssets, err := numAssetsCall.uint8()
	if err != nil {
		return nil, err
	}
	baseBorrowMinRaw, err := baseBorrowMinCall.bigInt()
	if err != nil {
		return nil, err
	}

	calls := make([]*chainCall, 0, int(numAssets)+3)
	for i := uint8(0); i < numAssets; i++ {
		calls = append(calls, f.cometCall(comet, "getAssetInfo", i))
	}
	baseMetadata := f.metadataCalls(baseTokenAddress)
	calls = append(calls, baseMetadata...)
	if err := f.run(ctx, calls); err != nil {
		return nil, err
	}

	infos := make([]assetInfo, numAssets)
	for i := range infos {
		infos[i], err = calls[i].assetInfo()
		if err != nil {
			return nil, err
		}
	}
	baseToken, err := f.decodeToken(cfg.ChainID, baseTokenAddress, baseMetadata)
	if err != nil {
		return nil, err
	}
	baseToken = unwrapNative(baseToken)

	assetCalls := make([]*chainCall, 0, int(numAssets)*3)
	for _, info := range infos {
		assetCalls = append(assetCalls, f.metadataCalls(info.Asset)...)
	}
	if err := f.run(ctx, assetCalls); err != nil {
		return nil, err
	}

	assets := make([]AssetConfig, numAssets)
	for i, info := range infos {
		token, err := f.decodeToken(cfg.ChainID, info.Asset, assetCalls[i*3:i*3+3])
		if err != nil {
			return nil, err
		}
		assets[i] = AssetConfig{
			Token:                     unwrapNative(token),
			PriceFeed:                 info.PriceFeed.Hex(),
			BorrowCollateralFactor:    decimal.NewFromUint64(info.BorrowCollateralFactor).Div(factorScale),
			LiquidateCollateralFactor: decimal.NewFromUint64(info.LiquidateCollateralFactor).Div(factorScale),
		}
	}

	market := &Market{
		ChainID:            cfg.ChainID,
		ID:                 cfg.ID,
		CometAddress:       comet.Hex(),
		BaseToken:          baseToken,
		BaseTokenPriceFeed: baseFeed.Hex(),
		BaseBorrowMin:      decimal.NewFromBigInt(baseBorrowMinRaw, -baseToken.Decimals),
		Assets:             assets,
	}
	if feed, ok := registry.CustomBaseTokenPriceFeed(cfg.ChainID, cfg.ID); ok {
		market.BaseTokenQuoteFeed = common.HexToAddress(feed).Hex()
	}
	return market, nil
}

func (f *Fetcher) metadataCalls(token common.Address) []*chainCall {
	return []*chainCall{
		f.erc20Call(token, "symbol"),
		f.erc20Call(token, "name"),
		f.erc20Call(token, "decimals"),
	}
}

func (f *Fetcher) decodeToken(chainID int64, address common.Address, calls []*chainCall) (Token, error) {
	symbol, err := calls[0].text()
	if err != nil {
		return Token{}, err
	}
	name, err := calls[1].text()
	if err != nil {
		return Token{}, err
	}
	decimals, err := calls[2].uint8()
	if err != nil {
		return Token{}, err
	}
	return Token{
		ChainID:  chainID,
		Address:  address.Hex(),
		Decimals: int32(decimals),
		Symbol:   symbol,
		Name:     name,
	}, nil
}

// FetchToken reads ERC20 metadata for one token address.
func (f *Fetcher) FetchToken(ctx context.Context, chainID int64, address string) (Token, error) {
	calls := f.metadataCalls(common.HexToAddress(address))
	if err := f.run(ctx, calls); err != nil {
		return Token{}, err
	}
	return f.decodeToken(chainID, common.HexToAddress(address), calls)
}

// Snapshot carries the per-request dynamic readings of a market: utilization,
// prices in 8-dp USD, annualizable rates and, when an account was supplied,
// its balances in token units.
type Snapshot struct {
	Utilization        *big.Int
	BaseTokenPrice     decimal.Decimal
	AssetPrices        []decimal.Decimal
	SupplyRate         *big.Int
	BorrowRate         *big.Int
	SupplyBalance      decimal.Decimal
	BorrowBalance      decimal.Decimal
	CollateralBalances []decimal.Decimal
}

// FetchSnapshot reads the dynamic state of a market in two round trips. The
// second trip exists because the rate getters take the utilization reading
// from the first as an argument.
func (f *Fetcher) FetchSnapshot(ctx context.Context, market *Market, account string) (*Snapshot, error) {
	comet := common.HexToAddress(market.CometAddress)
	numAssets := len(market.Assets)
	hasQuoteFeed := market.BaseTokenQuoteFeed != ""
	hasAccount := account != ""

	calls := make([]*chainCall, 0, 2+numAssets*2+3)
	calls = append(calls, f.cometCall(comet, "getUtilization"))
	if hasQuoteFeed {
		calls = append(calls, f.cometCall(comet, "getPrice", common.HexToAddress(market.BaseTokenQuoteFeed)))
	}
	calls = append(calls, f.cometCall(comet, "getPrice", common.HexToAddress(market.BaseTokenPriceFeed)))
	for _, asset := range market.Assets {
		calls = append(calls, f.cometCall(comet, "getPrice", common.HexToAddress(asset.PriceFeed)))
	}
	if hasAccount {
		owner := common.HexToAddress(account)
		calls = append(calls, f.cometCall(comet, "balanceOf", owner))
		calls = append(calls, f.cometCall(comet, "borrowBalanceOf", owner))
		for _, asset := range market.Assets {
			// Natively-presented assets are held as their wrapped ERC20.
			calls = append(calls, f.cometCall(comet, "collateralBalanceOf", owner, common.HexToAddress(asset.Token.Wrapped().Address)))
		}
	}
	if err := f.run(ctx, calls); err != nil {
		return nil, err
	}

	next := 0
	take := func() *chainCall {
		c := calls[next]
		next++
		return c
	}

	utilization, err := take().bigInt()
	if err != nil {
		return nil, err
	}

	var quoteReading *big.Int
	if hasQuoteFeed {
		if quoteReading, err = take().bigInt(); err != nil {
			return nil, err
		}
	}
	scalePrice := func(raw *big.Int) decimal.Decimal {
		if quoteReading != nil {
			raw = new(big.Int).Div(new(big.Int).Mul(raw, quoteReading), big.NewInt(1e8))
		}
		return decimal.NewFromBigInt(raw, 0).Div(priceScale)
	}

	basePriceRaw, err := take().bigInt()
	if err != nil {
		return nil, err
	}
	snapshot := &Snapshot{
		Utilization:        utilization,
		BaseTokenPrice:     scalePrice(basePriceRaw),
		AssetPrices:        make([]decimal.Decimal, numAssets),
		CollateralBalances: make([]decimal.Decimal, numAssets),
	}
	for i := 0; i < numAssets; i++ {
		raw, err := take().bigInt()
		if err != nil {
			return nil, err
		}
		snapshot.AssetPrices[i] = scalePrice(raw)
	}

	if hasAccount {
		supplyRaw, err := take().bigInt()
		if err != nil {
			return nil, err
		}
		snapshot.SupplyBalance = decimal.NewFromBigInt(supplyRaw, -market.BaseToken.Decimals)
		borrowRaw, err := take().bigInt()
		if err != nil {
			return nil, err
		}
		snapshot.BorrowBalance = decimal.NewFromBigInt(borrowRaw, -market.BaseToken.Decimals)
		for i, asset := range market.Assets {
			raw, err := take().bigInt()
			if err != nil {
				return nil, err
			}
			snapshot.CollateralBalances[i] = decimal.NewFromBigInt(raw, -asset.Token.Decimals)
		}
	}

	supplyRateCall := f.cometCall(comet, "getSupplyRate", utilization)
	borrowRateCall := f.cometCall(comet, "getBorrowRate", utilization)
	if err := f.run(ctx, []*chainCall{supplyRateCall, borrowRateCall}); err != nil {
		return nil, err
	}
	if snapshot.SupplyRate, err = supplyRateCall.bigInt(); err != nil {
		return nil, err
	}
	if snapshot.BorrowRate, err = borrowRateCall.bigInt(); err != nil {
		return nil, err
	}
	return snapshot, nil
}
