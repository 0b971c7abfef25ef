package quote

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/gustavo/comet-kit/internal/comet"
	clierr "github.com/gustavo/comet-kit/internal/errors"
	"github.com/gustavo/comet-kit/internal/registry"
	"github.com/gustavo/comet-kit/internal/router"
)

// MarketReader supplies market configuration and account snapshots for one
// chain. Satisfied by comet.Service.
type MarketReader interface {
	ChainID() int64
	GetMarket(ctx context.Context, marketID string) (*comet.Market, error)
	GetMarketInfo(ctx context.Context, marketID, account string) (*comet.MarketInfo, error)
}

// Quoter coordinates one market's quotation operations: chain snapshot in,
// routed logics and projected positions out.
type Quoter struct {
	service MarketReader
	router  router.API
}

func New(service MarketReader, routerAPI router.API) *Quoter {
	return &Quoter{service: service, router: routerAPI}
}

// QuoteResult is the assembled response of one quotation operation. Either
// the full result is produced or an error is returned with no logics.
type QuoteResult struct {
	Quotation  any               `json:"quotation"`
	Fees       []json.RawMessage `json:"fees"`
	Approvals  []json.RawMessage `json:"approvals"`
	PermitData json.RawMessage   `json:"permitData,omitempty"`
	Logics     []router.Logic    `json:"logics"`
}

func emptyResult() *QuoteResult {
	return &QuoteResult{
		Fees:      []json.RawMessage{},
		Approvals: []json.RawMessage{},
		Logics:    []router.Logic{},
	}
}

func (r *QuoteResult) applyEstimate(estimate router.EstimateResult, logics []router.Logic) {
	r.Fees = estimate.Fees
	r.Approvals = estimate.Approvals
	r.PermitData = estimate.PermitData
	r.Logics = logics
}

// prepared carries the shared head state of one quotation operation.
type prepared struct {
	market  *comet.Market
	info    *comet.MarketInfo
	account string
	amount  decimal.Decimal
	active  bool
}

// prepare runs the shared head of every operation: market existence, account
// shape, amount shape, then the snapshot fetch. Check order is part of the
// contract; the first failing check wins, and malformed input is rejected
// before any chain round trip.
func (q *Quoter) prepare(ctx context.Context, marketID, account, amount string) (*prepared, error) {
	if _, ok := registry.FindMarket(q.service.ChainID(), marketID); !ok {
		return nil, clierr.NewBadRequest("400.1", "market does not exist")
	}
	checksummed, err := validateAccount(account)
	if err != nil {
		return nil, err
	}
	value, active, err := parseAmount(amount)
	if err != nil {
		return nil, err
	}
	market, err := q.service.GetMarket(ctx, marketID)
	if err != nil {
		return nil, err
	}
	info, err := q.service.GetMarketInfo(ctx, marketID, checksummed)
	if err != nil {
		return nil, err
	}
	return &prepared{market: market, info: info, account: checksummed, amount: value, active: active}, nil
}

func validateAccount(account string) (string, error) {
	account = strings.TrimSpace(account)
	if account == "" {
		return "", clierr.NewBadRequest("400.3", "account can't be blank")
	}
	if !common.IsHexAddress(account) {
		return "", clierr.NewBadRequest("400.4", "account is invalid")
	}
	return common.HexToAddress(account).Hex(), nil
}

// parseAmount interprets an operation amount. Absent amounts make the
// operation a no-op; malformed ones are client errors; non-positive ones are
// no-ops as well.
func parseAmount(amount string) (decimal.Decimal, bool, error) {
	amount = strings.TrimSpace(amount)
	if amount == "" {
		return decimal.Zero, false, nil
	}
	value, err := decimal.NewFromString(amount)
	if err != nil {
		return decimal.Zero, false, clierr.NewBadRequest("400.2", "body is invalid")
	}
	if value.Sign() <= 0 {
		return decimal.Zero, false, nil
	}
	return value, true, nil
}

func (q *Quoter) chainID() int64 { return q.service.ChainID() }
