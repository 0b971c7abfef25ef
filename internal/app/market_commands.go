package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/spf13/cobra"

	"github.com/gustavo/comet-kit/internal/comet"
	clierr "github.com/gustavo/comet-kit/internal/errors"
	"github.com/gustavo/comet-kit/internal/httpx"
	"github.com/gustavo/comet-kit/internal/registry"
	"github.com/gustavo/comet-kit/internal/router"
)

// chainSession bundles the per-command chain read stack. Closed when the
// command returns.
type chainSession struct {
	service *comet.Service
	fetcher *comet.Fetcher
	close   func()
}

func (s *runtimeState) openChain(ctx context.Context, chainID int64) (*chainSession, error) {
	if !registry.SupportedChain(chainID) {
		return nil, clierr.New(clierr.CodeUnsupported, fmt.Sprintf("chain %d is not supported", chainID))
	}
	rpcURL, err := registry.ResolveRPCURL(s.settings.ResolveRPC(chainID), chainID)
	if err != nil {
		return nil, err
	}
	client, err := rpc.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, clierr.Wrap(clierr.CodeUnavailable, "dial rpc endpoint", err)
	}
	fetcher, err := comet.NewFetcher(client, s.settings.BlockTag)
	if err != nil {
		client.Close()
		return nil, err
	}
	return &chainSession{
		service: comet.NewService(fetcher, chainID, s.cache, s.settings.CacheTTL),
		fetcher: fetcher,
		close:   client.Close,
	}, nil
}

func (s *runtimeState) newRouterAPI() router.API {
	return router.New(httpx.New(s.settings.Timeout, s.settings.Retries), s.settings.RouterBaseURL)
}

func (s *runtimeState) commandContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), s.settings.Timeout)
}

// resolveToken turns a token address flag into a typed token: the chain's
// native token for the pseudo-address, the market's base token or a
// configured collateral when it matches, otherwise a chain metadata read.
// Empty input means the operation runs as a no-op.
func resolveToken(ctx context.Context, session *chainSession, market *comet.Market, address string) (*comet.Token, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return nil, nil
	}
	if !common.IsHexAddress(address) {
		return nil, clierr.NewBadRequest("400.2", "body is invalid")
	}
	if registry.IsNativeTokenAddress(address) {
		token, ok := comet.NativeToken(market.ChainID)
		if !ok {
			return nil, clierr.NewBadRequest("400.2", "body is invalid")
		}
		return &token, nil
	}
	if market.IsBaseToken(address) {
		token := market.BaseToken
		return &token, nil
	}
	if asset, ok := market.FindAsset(address); ok {
		token := asset.Token
		return &token, nil
	}
	token, err := session.fetcher.FetchToken(ctx, market.ChainID, address)
	if err != nil {
		return nil, err
	}
	return &token, nil
}

func checksumAccount(account string) (string, error) {
	account = strings.TrimSpace(account)
	if account == "" {
		return "", nil
	}
	if !common.IsHexAddress(account) {
		return "", clierr.NewBadRequest("400.4", "account is invalid")
	}
	return common.HexToAddress(account).Hex(), nil
}

func (s *runtimeState) newMarketsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "markets",
		Short: "List supported markets grouped by chain",
		RunE: func(cmd *cobra.Command, args []string) error {
			return s.emitSuccess(registry.MarketGroups())
		},
	}
}

func (s *runtimeState) newMarketCommand() *cobra.Command {
	var chainID int64
	var marketID, account string
	cmd := &cobra.Command{
		Use:   "market",
		Short: "Show market state and an optional account position",
		RunE: func(cmd *cobra.Command, args []string) error {
			s.noteContext(chainID, marketID, account)
			checksummed, err := checksumAccount(account)
			if err != nil {
				return err
			}
			ctx, cancel := s.commandContext()
			defer cancel()
			session, err := s.openChain(ctx, chainID)
			if err != nil {
				return err
			}
			defer session.close()
			info, err := session.service.GetMarketInfo(ctx, marketID, checksummed)
			if err != nil {
				return err
			}
			return s.emitSuccess(info)
		},
	}
	cmd.Flags().Int64Var(&chainID, "chain", 0, "Chain id")
	cmd.Flags().StringVar(&marketID, "market", "", "Market id (e.g. USDC)")
	cmd.Flags().StringVar(&account, "account", "", "Account address (optional)")
	_ = cmd.MarkFlagRequired("chain")
	_ = cmd.MarkFlagRequired("market")
	return cmd
}

func (s *runtimeState) newZapTokensCommand() *cobra.Command {
	var chainID int64
	cmd := &cobra.Command{
		Use:   "zap-tokens",
		Short: "List tokens the routing service can swap on a chain",
		RunE: func(cmd *cobra.Command, args []string) error {
			s.noteContext(chainID, "", "")
			ctx, cancel := s.commandContext()
			defer cancel()
			tokens, err := s.newRouterAPI().GetSwapTokenList(ctx, chainID)
			if err != nil {
				return err
			}
			return s.emitSuccess(tokens)
		},
	}
	cmd.Flags().Int64Var(&chainID, "chain", 0, "Chain id")
	_ = cmd.MarkFlagRequired("chain")
	return cmd
}
