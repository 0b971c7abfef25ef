package app

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/gustavo/comet-kit/internal/comet"
	"github.com/gustavo/comet-kit/internal/quote"
)

type quoteRun func(ctx context.Context, q *quote.Quoter, session *chainSession, market *comet.Market) (*quote.QuoteResult, error)

// runQuote is the shared tail of every quotation command: open the chain
// stack, resolve the market, run the operation and emit the envelope.
func (s *runtimeState) runQuote(chainID int64, marketID, account string, run quoteRun) error {
	s.noteContext(chainID, marketID, account)
	ctx, cancel := s.commandContext()
	defer cancel()
	session, err := s.openChain(ctx, chainID)
	if err != nil {
		return err
	}
	defer session.close()
	market, err := session.service.GetMarket(ctx, marketID)
	if err != nil {
		return err
	}
	quoter := quote.New(session.service, s.newRouterAPI())
	result, err := run(ctx, quoter, session, market)
	if err != nil {
		return err
	}
	return s.emitSuccess(result)
}

func (s *runtimeState) newLeverageCommand() *cobra.Command {
	var chainID int64
	var marketID, account, token, amount string
	var slippage int
	cmd := &cobra.Command{
		Use:   "leverage",
		Short: "Quote leveraging up a collateral position",
		RunE: func(cmd *cobra.Command, args []string) error {
			return s.runQuote(chainID, marketID, account, func(ctx context.Context, q *quote.Quoter, session *chainSession, market *comet.Market) (*quote.QuoteResult, error) {
				resolved, err := resolveToken(ctx, session, market, token)
				if err != nil {
					return nil, err
				}
				return q.Leverage(ctx, marketID, quote.LeverageRequest{
					Account:  account,
					Token:    resolved,
					Amount:   amount,
					Slippage: slippage,
				})
			})
		},
	}
	cmd.Flags().Int64Var(&chainID, "chain", 0, "Chain id")
	cmd.Flags().StringVar(&marketID, "market", "", "Market id")
	cmd.Flags().StringVar(&account, "account", "", "Account address")
	cmd.Flags().StringVar(&token, "token", "", "Collateral token address to leverage")
	cmd.Flags().StringVar(&amount, "amount", "", "Collateral amount to flash-loan")
	cmd.Flags().IntVar(&slippage, "slippage", 100, "Swap slippage in basis points")
	_ = cmd.MarkFlagRequired("chain")
	_ = cmd.MarkFlagRequired("market")
	_ = cmd.MarkFlagRequired("account")
	return cmd
}

func (s *runtimeState) newDeleverageCommand() *cobra.Command {
	var chainID int64
	var marketID, account, collateralToken, baseAmount string
	var slippage int
	cmd := &cobra.Command{
		Use:   "deleverage",
		Short: "Quote unwinding a leveraged position",
		RunE: func(cmd *cobra.Command, args []string) error {
			return s.runQuote(chainID, marketID, account, func(ctx context.Context, q *quote.Quoter, session *chainSession, market *comet.Market) (*quote.QuoteResult, error) {
				resolved, err := resolveToken(ctx, session, market, collateralToken)
				if err != nil {
					return nil, err
				}
				return q.Deleverage(ctx, marketID, quote.DeleverageRequest{
					Account:         account,
					CollateralToken: resolved,
					BaseAmount:      baseAmount,
					Slippage:        slippage,
				})
			})
		},
	}
	cmd.Flags().Int64Var(&chainID, "chain", 0, "Chain id")
	cmd.Flags().StringVar(&marketID, "market", "", "Market id")
	cmd.Flags().StringVar(&account, "account", "", "Account address")
	cmd.Flags().StringVar(&collateralToken, "collateral-token", "", "Collateral token address to unwind")
	cmd.Flags().StringVar(&baseAmount, "base-amount", "", "Base token amount to repay")
	cmd.Flags().IntVar(&slippage, "slippage", 100, "Swap slippage in basis points")
	_ = cmd.MarkFlagRequired("chain")
	_ = cmd.MarkFlagRequired("market")
	_ = cmd.MarkFlagRequired("account")
	return cmd
}

func (s *runtimeState) newCollateralSwapCommand() *cobra.Command {
	var chainID int64
	var marketID, account, srcToken, srcAmount, destToken string
	var slippage int
	cmd := &cobra.Command{
		Use:   "collateral-swap",
		Short: "Quote swapping one collateral for another in place",
		RunE: func(cmd *cobra.Command, args []string) error {
			return s.runQuote(chainID, marketID, account, func(ctx context.Context, q *quote.Quoter, session *chainSession, market *comet.Market) (*quote.QuoteResult, error) {
				src, err := resolveToken(ctx, session, market, srcToken)
				if err != nil {
					return nil, err
				}
				dest, err := resolveToken(ctx, session, market, destToken)
				if err != nil {
					return nil, err
				}
				return q.CollateralSwap(ctx, marketID, quote.CollateralSwapRequest{
					Account:   account,
					SrcToken:  src,
					SrcAmount: srcAmount,
					DestToken: dest,
					Slippage:  slippage,
				})
			})
		},
	}
	cmd.Flags().Int64Var(&chainID, "chain", 0, "Chain id")
	cmd.Flags().StringVar(&marketID, "market", "", "Market id")
	cmd.Flags().StringVar(&account, "account", "", "Account address")
	cmd.Flags().StringVar(&srcToken, "src-token", "", "Collateral token address to withdraw")
	cmd.Flags().StringVar(&srcAmount, "src-amount", "", "Amount of source collateral to swap")
	cmd.Flags().StringVar(&destToken, "dest-token", "", "Collateral token address to supply")
	cmd.Flags().IntVar(&slippage, "slippage", 100, "Swap slippage in basis points")
	_ = cmd.MarkFlagRequired("chain")
	_ = cmd.MarkFlagRequired("market")
	_ = cmd.MarkFlagRequired("account")
	return cmd
}

func (s *runtimeState) newZapSupplyCommand() *cobra.Command {
	var chainID int64
	var marketID, account, srcToken, srcAmount, destToken, permit2Type string
	var slippage int
	cmd := &cobra.Command{
		Use:   "zap-supply",
		Short: "Quote swapping a token into a base or collateral supply",
		RunE: func(cmd *cobra.Command, args []string) error {
			return s.runQuote(chainID, marketID, account, func(ctx context.Context, q *quote.Quoter, session *chainSession, market *comet.Market) (*quote.QuoteResult, error) {
				src, err := resolveToken(ctx, session, market, srcToken)
				if err != nil {
					return nil, err
				}
				dest, err := resolveToken(ctx, session, market, destToken)
				if err != nil {
					return nil, err
				}
				return q.ZapSupply(ctx, marketID, quote.ZapSupplyRequest{
					Account:     account,
					SrcToken:    src,
					SrcAmount:   srcAmount,
					DestToken:   dest,
					Slippage:    slippage,
					Permit2Type: permit2Type,
				})
			})
		},
	}
	cmd.Flags().Int64Var(&chainID, "chain", 0, "Chain id")
	cmd.Flags().StringVar(&marketID, "market", "", "Market id")
	cmd.Flags().StringVar(&account, "account", "", "Account address")
	cmd.Flags().StringVar(&srcToken, "src-token", "", "Token address to pay with")
	cmd.Flags().StringVar(&srcAmount, "src-amount", "", "Amount of source token to supply")
	cmd.Flags().StringVar(&destToken, "dest-token", "", "Base or collateral token address to supply")
	cmd.Flags().IntVar(&slippage, "slippage", 100, "Swap slippage in basis points")
	cmd.Flags().StringVar(&permit2Type, "permit2-type", "", "Permit2 type for the estimate (permit|approve)")
	_ = cmd.MarkFlagRequired("chain")
	_ = cmd.MarkFlagRequired("market")
	_ = cmd.MarkFlagRequired("account")
	return cmd
}

func (s *runtimeState) newZapBorrowCommand() *cobra.Command {
	var chainID int64
	var marketID, account, amount, targetToken string
	var slippage int
	cmd := &cobra.Command{
		Use:   "zap-borrow",
		Short: "Quote borrowing base token, optionally swapped to another token",
		RunE: func(cmd *cobra.Command, args []string) error {
			return s.runQuote(chainID, marketID, account, func(ctx context.Context, q *quote.Quoter, session *chainSession, market *comet.Market) (*quote.QuoteResult, error) {
				target, err := resolveToken(ctx, session, market, targetToken)
				if err != nil {
					return nil, err
				}
				return q.ZapBorrow(ctx, marketID, quote.ZapBorrowRequest{
					Account:     account,
					Amount:      amount,
					TargetToken: target,
					Slippage:    slippage,
				})
			})
		},
	}
	cmd.Flags().Int64Var(&chainID, "chain", 0, "Chain id")
	cmd.Flags().StringVar(&marketID, "market", "", "Market id")
	cmd.Flags().StringVar(&account, "account", "", "Account address")
	cmd.Flags().StringVar(&amount, "amount", "", "Base token amount to borrow")
	cmd.Flags().StringVar(&targetToken, "target-token", "", "Token address to receive")
	cmd.Flags().IntVar(&slippage, "slippage", 100, "Swap slippage in basis points")
	_ = cmd.MarkFlagRequired("chain")
	_ = cmd.MarkFlagRequired("market")
	_ = cmd.MarkFlagRequired("account")
	return cmd
}

func (s *runtimeState) newZapRepayCommand() *cobra.Command {
	var chainID int64
	var marketID, account, srcToken, amount, permit2Type string
	var slippage int
	cmd := &cobra.Command{
		Use:   "zap-repay",
		Short: "Quote repaying debt with an arbitrary token",
		RunE: func(cmd *cobra.Command, args []string) error {
			return s.runQuote(chainID, marketID, account, func(ctx context.Context, q *quote.Quoter, session *chainSession, market *comet.Market) (*quote.QuoteResult, error) {
				src, err := resolveToken(ctx, session, market, srcToken)
				if err != nil {
					return nil, err
				}
				return q.ZapRepay(ctx, marketID, quote.ZapRepayRequest{
					Account:     account,
					SrcToken:    src,
					Amount:      amount,
					Slippage:    slippage,
					Permit2Type: permit2Type,
				})
			})
		},
	}
	cmd.Flags().Int64Var(&chainID, "chain", 0, "Chain id")
	cmd.Flags().StringVar(&marketID, "market", "", "Market id")
	cmd.Flags().StringVar(&account, "account", "", "Account address")
	cmd.Flags().StringVar(&srcToken, "src-token", "", "Token address to pay with")
	cmd.Flags().StringVar(&amount, "amount", "", "Amount of source token to spend")
	cmd.Flags().IntVar(&slippage, "slippage", 100, "Swap slippage in basis points")
	cmd.Flags().StringVar(&permit2Type, "permit2-type", "", "Permit2 type for the estimate (permit|approve)")
	_ = cmd.MarkFlagRequired("chain")
	_ = cmd.MarkFlagRequired("market")
	_ = cmd.MarkFlagRequired("account")
	return cmd
}

func (s *runtimeState) newZapWithdrawCommand() *cobra.Command {
	var chainID int64
	var marketID, account, srcToken, srcAmount, destToken, permit2Type string
	var slippage int
	cmd := &cobra.Command{
		Use:   "zap-withdraw",
		Short: "Quote withdrawing base or collateral, optionally swapped",
		RunE: func(cmd *cobra.Command, args []string) error {
			return s.runQuote(chainID, marketID, account, func(ctx context.Context, q *quote.Quoter, session *chainSession, market *comet.Market) (*quote.QuoteResult, error) {
				src, err := resolveToken(ctx, session, market, srcToken)
				if err != nil {
					return nil, err
				}
				dest, err := resolveToken(ctx, session, market, destToken)
				if err != nil {
					return nil, err
				}
				return q.ZapWithdraw(ctx, marketID, quote.ZapWithdrawRequest{
					Account:     account,
					SrcToken:    src,
					SrcAmount:   srcAmount,
					DestToken:   dest,
					Slippage:    slippage,
					Permit2Type: permit2Type,
				})
			})
		},
	}
	cmd.Flags().Int64Var(&chainID, "chain", 0, "Chain id")
	cmd.Flags().StringVar(&marketID, "market", "", "Market id")
	cmd.Flags().StringVar(&account, "account", "", "Account address")
	cmd.Flags().StringVar(&srcToken, "src-token", "", "Base or collateral token address to withdraw")
	cmd.Flags().StringVar(&srcAmount, "src-amount", "", "Amount to withdraw")
	cmd.Flags().StringVar(&destToken, "dest-token", "", "Token address to receive")
	cmd.Flags().IntVar(&slippage, "slippage", 100, "Swap slippage in basis points")
	cmd.Flags().StringVar(&permit2Type, "permit2-type", "", "Permit2 type for the estimate (permit|approve)")
	_ = cmd.MarkFlagRequired("chain")
	_ = cmd.MarkFlagRequired("market")
	_ = cmd.MarkFlagRequired("account")
	return cmd
}
