package app

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/gustavo/comet-kit/internal/cache"
	"github.com/gustavo/comet-kit/internal/config"
	clierr "github.com/gustavo/comet-kit/internal/errors"
	"github.com/gustavo/comet-kit/internal/model"
	"github.com/gustavo/comet-kit/internal/out"
	"github.com/gustavo/comet-kit/internal/version"
)

type Runner struct {
	stdout io.Writer
	stderr io.Writer
	now    func() time.Time
}

func NewRunner() *Runner {
	return NewRunnerWithWriters(os.Stdout, os.Stderr)
}

func NewRunnerWithWriters(stdout, stderr io.Writer) *Runner {
	return &Runner{
		stdout: stdout,
		stderr: stderr,
		now:    time.Now,
	}
}

type runtimeState struct {
	runner   *Runner
	flags    config.GlobalFlags
	settings config.Settings
	cache    *cache.Store

	lastCommand  string
	lastChainID  int64
	lastMarketID string
	lastAccount  string
}

func (r *Runner) Run(args []string) int {
	state := &runtimeState{runner: r}
	root := state.newRootCommand()
	root.SetArgs(args)
	root.SetOut(r.stdout)
	root.SetErr(r.stderr)
	root.SilenceUsage = true
	root.SilenceErrors = true

	err := root.Execute()
	err = normalizeRunError(err)
	if state.cache != nil {
		_ = state.cache.Close()
	}
	if err == nil {
		return 0
	}
	state.renderError(err)
	return clierr.ExitCode(err)
}

func (s *runtimeState) newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   version.CLIName,
		Short: "Compound V3 position and quotation CLI",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "help" {
				return nil
			}
			settings, err := config.Load(s.flags)
			if err != nil {
				return clierr.Wrap(clierr.CodeUsage, "load configuration", err)
			}
			s.settings = settings
			s.lastCommand = trimRootPath(cmd.CommandPath())

			if settings.CacheEnabled && shouldOpenCache(s.lastCommand) && s.cache == nil {
				store, err := cache.Open(settings.CachePath, settings.CacheLockPath)
				if err != nil {
					return clierr.Wrap(clierr.CodeInternal, "open cache", err)
				}
				s.cache = store
			}
			return nil
		},
	}
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return clierr.Wrap(clierr.CodeUsage, "parse flags", err)
	})

	cmd.PersistentFlags().StringVar(&s.flags.ConfigPath, "config", "", "Path to config file")
	cmd.PersistentFlags().StringVar(&s.flags.Timeout, "timeout", "", "Request timeout")
	cmd.PersistentFlags().IntVar(&s.flags.Retries, "retries", -1, "Retries per request")
	cmd.PersistentFlags().StringVar(&s.flags.RPCURL, "rpc-url", "", "RPC endpoint override")
	cmd.PersistentFlags().StringVar(&s.flags.BlockTag, "block", "", "Block tag or number for chain reads")
	cmd.PersistentFlags().StringVar(&s.flags.RouterURL, "router-url", "", "Routing service base URL override")
	cmd.PersistentFlags().BoolVar(&s.flags.NoCache, "no-cache", false, "Disable the market configuration cache")

	cmd.AddCommand(s.newMarketsCommand())
	cmd.AddCommand(s.newMarketCommand())
	cmd.AddCommand(s.newLeverageCommand())
	cmd.AddCommand(s.newDeleverageCommand())
	cmd.AddCommand(s.newCollateralSwapCommand())
	cmd.AddCommand(s.newZapSupplyCommand())
	cmd.AddCommand(s.newZapBorrowCommand())
	cmd.AddCommand(s.newZapRepayCommand())
	cmd.AddCommand(s.newZapWithdrawCommand())
	cmd.AddCommand(s.newZapTokensCommand())
	cmd.AddCommand(newVersionCommand())

	return cmd
}

func newVersionCommand() *cobra.Command {
	var long bool
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print CLI version",
		Run: func(cmd *cobra.Command, args []string) {
			if long {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), version.Long())
				return
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), version.CLIVersion)
		},
	}
	cmd.Flags().BoolVar(&long, "long", false, "Print extended build metadata")
	return cmd
}

// noteContext records the request identifiers so a later error envelope can
// echo them back.
func (s *runtimeState) noteContext(chainID int64, marketID, account string) {
	s.lastChainID = chainID
	s.lastMarketID = marketID
	s.lastAccount = account
}

func (s *runtimeState) emitSuccess(data any) error {
	env := model.Envelope{
		Version: model.EnvelopeVersion,
		Success: true,
		Data:    data,
		Error:   nil,
		Meta:    s.meta(),
	}
	return out.Render(s.runner.stdout, env)
}

func (s *runtimeState) renderError(err error) {
	code := clierr.ExitCode(err)
	typ := "internal_error"
	reason := ""
	message := err.Error()
	if typed, ok := clierr.As(err); ok {
		message = typed.Message
		if typed.Cause != nil {
			message = fmt.Sprintf("%s: %v", typed.Message, typed.Cause)
		}
		reason = typed.Reason
		switch typed.Code {
		case clierr.CodeUsage:
			typ = "usage_error"
		case clierr.CodeBadRequest:
			typ = "bad_request"
			// Client-caused failures render the stable message only.
			message = typed.Message
		case clierr.CodeUnavailable:
			typ = "unavailable"
		case clierr.CodeUnsupported:
			typ = "unsupported"
		}
	}

	env := model.Envelope{
		Version: model.EnvelopeVersion,
		Success: false,
		Error: &model.ErrorBody{
			Code:    code,
			Type:    typ,
			Reason:  reason,
			Message: message,
		},
		Meta: s.meta(),
	}
	_ = out.Render(s.runner.stderr, env)
}

func (s *runtimeState) meta() model.EnvelopeMeta {
	command := s.lastCommand
	if command == "" {
		command = version.CLIName
	}
	return model.EnvelopeMeta{
		RequestID: newRequestID(),
		Timestamp: s.runner.now().UTC(),
		Command:   command,
		ChainID:   s.lastChainID,
		MarketID:  s.lastMarketID,
		Account:   s.lastAccount,
		BlockTag:  s.settings.BlockTag,
	}
}

func newRequestID() string {
	buf := make([]byte, 16)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}

func trimRootPath(path string) string {
	parts := strings.Fields(path)
	if len(parts) <= 1 {
		return path
	}
	return strings.Join(parts[1:], " ")
}

func normalizeRunError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := clierr.As(err); ok {
		return err
	}
	if isLikelyUsageError(err) {
		return clierr.Wrap(clierr.CodeUsage, "invalid command input", err)
	}
	return clierr.Wrap(clierr.CodeInternal, "execute command", err)
}

func isLikelyUsageError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	patterns := []string{
		"unknown command",
		"unknown flag",
		"required flag(s)",
		"flag needs an argument",
		"requires at least",
		"requires exactly",
		"accepts ",
		"invalid argument",
		"invalid args",
	}
	for _, p := range patterns {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}

// Only commands that fetch market configuration benefit from the persistent
// cache; the rest skip the sqlite open entirely.
func shouldOpenCache(commandPath string) bool {
	switch strings.TrimSpace(strings.ToLower(commandPath)) {
	case "", "version", "markets", "zap-tokens":
		return false
	default:
		return true
	}
}
