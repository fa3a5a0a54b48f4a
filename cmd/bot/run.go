package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"signal_bot/internal/modules/config"
	"signal_bot/internal/modules/health"
	"signal_bot/internal/modules/market"
	"signal_bot/internal/modules/notify"
	"signal_bot/internal/modules/postgres"
	"signal_bot/internal/runner"
	"signal_bot/pkg/logger"
	"signal_bot/pkg/tracing"
)

func newRunCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the scanner loop until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBot(*configPath)
		},
	}
}

func newValidateCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Load and validate the config, then exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.NewConfig(*configPath)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "config ok: %d instruments, %d markets, every %s\n",
				len(cfg.Scanner.Instruments), len(cfg.Markets.ByMarket()), cfg.Scanner.Interval)
			return nil
		},
	}
}

// setupObservability поднимает zap и jaeger до fx; вызывающий обязан вызвать cleanup.
func setupObservability(cfg *config.Config) (func(), error) {
	logger.SetServiceName(cfg.Service.Name)
	tracing.SetServiceName(cfg.Service.Name)
	if err := logger.Init(cfg.Service.LogLevel, cfg.Service.Development); err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	_, closeTracer, err := tracing.InitTracer(cfg.Tracing)
	if err != nil {
		logger.Sync()
		return nil, fmt.Errorf("init tracer: %w", err)
	}
	return func() {
		closeTracer()
		logger.Sync()
	}, nil
}

func runBot(configPath string) error {
	cfg, err := config.NewConfig(configPath)
	if err != nil {
		return err
	}
	cleanup, err := setupObservability(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	logger.Info("starting %s: %d instruments every %s", cfg.Service.Name, len(cfg.Scanner.Instruments), cfg.Scanner.Interval)

	app := fx.New(
		fx.WithLogger(func() fxevent.Logger {
			return &fxevent.ZapLogger{Logger: logger.L()}
		}),
		fx.Provide(
			func() context.Context {
				return context.Background()
			},
		),
		config.Module(cfg),
		market.Module(),
		postgres.Module(),
		health.Module(),
		notify.Module(),
		runner.Module(),
	)
	if err := app.Err(); err != nil {
		return err
	}
	// Run блокирует до SIGINT/SIGTERM и сам гасит lifecycle
	app.Run()
	return nil
}
