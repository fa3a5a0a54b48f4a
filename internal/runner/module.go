package runner

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/fx"

	"signal_bot/internal/cooldown"
	"signal_bot/internal/exchange"
	"signal_bot/internal/metrics"
	"signal_bot/internal/models"
	"signal_bot/internal/modules/config"
	"signal_bot/internal/strategy"
	"signal_bot/pkg/logger"
)

// NewOptions переводит конфиг в параметры цикла.
func NewOptions(cfg *config.Config) Options {
	markets := make(map[models.Market]MarketSettings, 2)
	for m, mc := range cfg.Markets.ByMarket() {
		markets[m] = MarketSettings{
			Cooldown:     time.Duration(mc.CooldownMinutes) * time.Minute,
			MaxProposals: mc.MaxProposals,
		}
	}
	s := cfg.Scanner
	return Options{
		Instruments:     s.Instruments,
		Interval:        s.Interval,
		CandleInterval:  s.CandleInterval,
		CandleLimit:     s.CandleLimit,
		Concurrency:     s.Concurrency,
		PreferredSource: s.PreferredSource,
		TieEpsilon:      s.TieEpsilon,
		CrossMarketPick: s.CrossMarketPick,
		Markets:         markets,
	}
}

// NewLedger: Redis, если включён, иначе память процесса.
func NewLedger(ctx context.Context, lc fx.Lifecycle, cfg *config.Config) (cooldown.Ledger, error) {
	if !cfg.Redis.Enabled {
		logger.Info("runner: in-memory cooldown ledger")
		return cooldown.NewMemory(), nil
	}
	r, err := cooldown.NewRedis(ctx, cfg.Redis.RedisConfig)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error { return r.Close() },
	})
	logger.Info("runner: redis cooldown ledger at %s", cfg.Redis.Addr)
	return r, nil
}

func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

func NewDetector(cfg *config.Config) *strategy.Detector {
	return strategy.NewDetector(cfg.Strategy, cfg.Markets.Rules())
}

func newRunner(
	cfg *config.Config,
	sources []exchange.Source,
	detector *strategy.Detector,
	ledger cooldown.Ledger,
	reporter Reporter,
	reg *prometheus.Registry,
) *Runner {
	return New(NewOptions(cfg), sources, detector, ledger, reporter, metrics.New(reg))
}

func Module() fx.Option {
	return fx.Module("runner",
		fx.Provide(
			NewRegistry,
			NewDetector,
			NewLedger,
			newRunner,
		),
		fx.Invoke(func(lc fx.Lifecycle, r *Runner) {
			// ctx хука отменяется сразу после старта
			ctx, cancel := context.WithCancel(context.Background())
			done := make(chan struct{})
			lc.Append(fx.Hook{
				OnStart: func(context.Context) error {
					go func() {
						defer close(done)
						r.Start(ctx)
					}()
					return nil
				},
				OnStop: func(stopCtx context.Context) error {
					cancel()
					select {
					case <-done:
					case <-stopCtx.Done():
					}
					return nil
				},
			})
		}),
	)
}
