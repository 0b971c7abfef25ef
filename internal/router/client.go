// Package router is the client for the external transaction-routing service.
// It owns swap quoting, flash-loan sourcing and approval/permit estimation;
// this repo only orders its opaque logic steps and passes amounts through.
package router

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/gustavo/comet-kit/internal/comet"
	clierr "github.com/gustavo/comet-kit/internal/errors"
	"github.com/gustavo/comet-kit/internal/httpx"
	"github.com/gustavo/comet-kit/internal/registry"
)

// TokenAmount pairs a token with a decimal amount string.
type TokenAmount struct {
	Token  comet.Token `json:"token"`
	Amount string      `json:"amount"`
}

// Logic is one opaque composable transaction step. Fields are never
// inspected locally; they round-trip to the estimate endpoint as-is.
type Logic struct {
	RID    string          `json:"rid"`
	Fields json.RawMessage `json:"fields"`
}

// SwapQuoteRequest quotes a swap in one of two directions: exact input
// (Input + TokenOut) or exact output (TokenIn + Output).
type SwapQuoteRequest struct {
	Input    *TokenAmount `json:"input,omitempty"`
	Output   *TokenAmount `json:"output,omitempty"`
	TokenIn  *comet.Token `json:"tokenIn,omitempty"`
	TokenOut *comet.Token `json:"tokenOut,omitempty"`
	Slippage int          `json:"slippage,omitempty"`
}

// SwapQuotation is the quoted swap with slippage already applied to the
// stated direction.
type SwapQuotation struct {
	Input    TokenAmount `json:"input"`
	Output   TokenAmount `json:"output"`
	Slippage int         `json:"slippage,omitempty"`
}

// FlashLoanQuoteRequest asks the aggregator either for given loan amounts or
// for loans sized so the repays match the given amounts.
type FlashLoanQuoteRequest struct {
	Loans  []TokenAmount `json:"loans,omitempty"`
	Repays []TokenAmount `json:"repays,omitempty"`
}

// FlashLoanQuotation resolves the flash-loan source and the exact repay
// amounts, fee included.
type FlashLoanQuotation struct {
	ProtocolID string        `json:"protocolId"`
	Loans      []TokenAmount `json:"loans"`
	Repays     []TokenAmount `json:"repays"`
}

// RouterData is the composed request sent for fee/approval estimation.
type RouterData struct {
	ChainID int64   `json:"chainId"`
	Account string  `json:"account"`
	Logics  []Logic `json:"logics"`
}

// EstimateResult reports what the caller must approve or sign before the
// composed steps can execute. Fee and approval entries stay opaque.
type EstimateResult struct {
	Fees       []json.RawMessage `json:"fees"`
	Approvals  []json.RawMessage `json:"approvals"`
	PermitData json.RawMessage   `json:"permitData,omitempty"`
}

// API is the routing-service surface the quotation operations consume.
type API interface {
	GetSwapTokenQuotation(ctx context.Context, chainID int64, req SwapQuoteRequest) (SwapQuotation, error)
	GetFlashLoanAggregatorQuotation(ctx context.Context, chainID int64, req FlashLoanQuoteRequest) (FlashLoanQuotation, error)
	EstimateRouterData(ctx context.Context, data RouterData, permit2Type string) (EstimateResult, error)
	GetSwapTokenList(ctx context.Context, chainID int64) ([]comet.Token, error)
}

type Client struct {
	http    *httpx.Client
	baseURL string
}

func New(httpClient *httpx.Client, baseURL string) *Client {
	if baseURL == "" {
		baseURL = registry.RouterBaseURL
	}
	return &Client{http: httpClient, baseURL: baseURL}
}

type swapQuoteBody struct {
	ChainID int64 `json:"chainId"`
	SwapQuoteRequest
}

func (c *Client) GetSwapTokenQuotation(ctx context.Context, chainID int64, req SwapQuoteRequest) (SwapQuotation, error) {
	body, err := json.Marshal(swapQuoteBody{ChainID: chainID, SwapQuoteRequest: req})
	if err != nil {
		return SwapQuotation{}, clierr.Wrap(clierr.CodeInternal, "encode swap quote request", err)
	}
	var quotation SwapQuotation
	if err := httpx.DoBodyJSON(ctx, c.http, http.MethodPost, c.baseURL+registry.RouterSwapQuotePath, body, &quotation); err != nil {
		return SwapQuotation{}, err
	}
	return quotation, nil
}

type flashLoanQuoteBody struct {
	ChainID int64 `json:"chainId"`
	FlashLoanQuoteRequest
}

func (c *Client) GetFlashLoanAggregatorQuotation(ctx context.Context, chainID int64, req FlashLoanQuoteRequest) (FlashLoanQuotation, error) {
	body, err := json.Marshal(flashLoanQuoteBody{ChainID: chainID, FlashLoanQuoteRequest: req})
	if err != nil {
		return FlashLoanQuotation{}, clierr.Wrap(clierr.CodeInternal, "encode flash loan quote request", err)
	}
	var quotation FlashLoanQuotation
	if err := httpx.DoBodyJSON(ctx, c.http, http.MethodPost, c.baseURL+registry.RouterFlashLoanQuotePath, body, &quotation); err != nil {
		return FlashLoanQuotation{}, err
	}
	if len(quotation.Loans) == 0 || len(quotation.Repays) == 0 {
		return FlashLoanQuotation{}, clierr.New(clierr.CodeUnavailable, "flash loan aggregator returned no route")
	}
	return quotation, nil
}

func (c *Client) EstimateRouterData(ctx context.Context, data RouterData, permit2Type string) (EstimateResult, error) {
	body, err := json.Marshal(data)
	if err != nil {
		return EstimateResult{}, clierr.Wrap(clierr.CodeInternal, "encode router data", err)
	}
	endpoint := c.baseURL + registry.RouterEstimatePath
	if permit2Type != "" {
		endpoint += "?permit2Type=" + url.QueryEscape(permit2Type)
	}
	var result EstimateResult
	if err := httpx.DoBodyJSON(ctx, c.http, http.MethodPost, endpoint, body, &result); err != nil {
		return EstimateResult{}, err
	}
	if result.Fees == nil {
		result.Fees = []json.RawMessage{}
	}
	if result.Approvals == nil {
		result.Approvals = []json.RawMessage{}
	}
	return result, nil
}

type swapTokenListResponse struct {
	Tokens []comet.Token `json:"tokens"`
}

func (c *Client) GetSwapTokenList(ctx context.Context, chainID int64) ([]comet.Token, error) {
	endpoint := fmt.Sprintf("%s%s?chainId=%d", c.baseURL, registry.RouterSwapTokenListPath, chainID)
	var resp swapTokenListResponse
	if err := httpx.DoBodyJSON(ctx, c.http, http.MethodGet, endpoint, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Tokens, nil
}
