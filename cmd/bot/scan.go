package main

import (
	"context"
	"fmt"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/bytedance/sonic"
	"github.com/spf13/cobra"

	"signal_bot/internal/cooldown"
	"signal_bot/internal/modules/config"
	"signal_bot/internal/modules/market"
	"signal_bot/internal/notify"
	"signal_bot/internal/runner"
	"signal_bot/pkg/logger"
)

func newScanCmd(configPath *string) *cobra.Command {
	var (
		asJSON  bool
		quiet   bool
		timeout time.Duration
	)
	cmd := &cobra.Command{
		Use:   "scan [INSTRUMENT...]",
		Short: "Run a single scan cycle and print proposals",
		Long: `Run exactly one cycle without cooldown history and print the result.
Instruments default to scanner.instruments from the config.
Example: signal-bot scan BTCUSDT ETHUSDT --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.NewConfig(*configPath)
			if err != nil {
				return err
			}
			cleanup, err := setupObservability(cfg)
			if err != nil {
				return err
			}
			defer cleanup()
			if quiet {
				logger.InitNop()
			}

			instruments := cfg.Scanner.Instruments
			if len(args) > 0 {
				instruments = make([]string, 0, len(args))
				for _, a := range args {
					instruments = append(instruments, strings.ToUpper(strings.TrimSpace(a)))
				}
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			if timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}

			r := runner.New(
				runner.NewOptions(cfg),
				market.NewSources(cfg, nil),
				runner.NewDetector(cfg),
				cooldown.NewMemory(),
				nil,
				nil,
			)
			report := r.RunCycle(ctx, instruments)
			logger.Debug("scan: %d proposals in %s", report.Total(), report.Duration)

			out := cmd.OutOrStdout()
			if asJSON {
				b, err := sonic.ConfigStd.MarshalIndent(report, "", "  ")
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(out, string(b))
				return err
			}
			return notify.NewStdout(out).Notify(ctx, report)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the cycle report as JSON")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "suppress logs, print only the result")
	cmd.Flags().DurationVar(&timeout, "timeout", 2*time.Minute, "abort the cycle after this long (0 disables)")
	return cmd
}
