package registry

// Transaction-routing SDK endpoints. The router service owns swap quoting,
// flash-loan sourcing and approval/permit estimation; this repo only consumes
// its typed results.
const (
	RouterBaseURL = "https://api.protocolink.com"

	RouterSwapQuotePath      = "/v1/protocols/paraswap-v5/swap-token/quote"
	RouterSwapTokenListPath  = "/v1/protocols/paraswap-v5/swap-token/tokens"
	RouterFlashLoanQuotePath = "/v1/protocols/utility/flash-loan-aggregator/quote"
	RouterEstimatePath       = "/v1/transactions/estimate"
)
