package market

import (
	"context"

	"go.uber.org/fx"

	"signal_bot/internal/exchange"
	"signal_bot/internal/modules/config"
	"signal_bot/pkg/logger"
)

// NewSources: включённые биржи в порядке конфигурации: сначала Binance, потом OKX.
func NewSources(cfg *config.Config, funding *exchange.FundingStream) []exchange.Source {
	var sources []exchange.Source
	if cfg.Exchanges.Binance.Enabled {
		sources = append(sources, exchange.NewBinance(cfg.Exchanges))
	}
	if cfg.Exchanges.OKX.Enabled {
		sources = append(sources, exchange.NewOKX(cfg.Exchanges, funding))
	}
	return sources
}

// NewFundingStream: nil, если стрим funding-rate не нужен.
func NewFundingStream(cfg *config.Config) *exchange.FundingStream {
	okx := cfg.Exchanges.OKX
	if !okx.Enabled || !okx.StreamFunding || !cfg.Markets.Futures.Enabled {
		return nil
	}
	return exchange.NewFundingStream(okx)
}

// Module поднимает источники свечей и websocket funding-rate OKX.
func Module() fx.Option {
	return fx.Module("market",
		fx.Provide(
			NewFundingStream,
			NewSources,
		),
		fx.Invoke(func(lc fx.Lifecycle, cfg *config.Config, s *exchange.FundingStream) {
			if s == nil {
				return
			}
			// ctx хука живёт только на время старта, стриму нужен свой
			ctx, cancel := context.WithCancel(context.Background())
			done := make(chan struct{})
			lc.Append(fx.Hook{
				OnStart: func(context.Context) error {
					ids := exchange.FundingInstIDs(cfg.Scanner.Instruments)
					logger.Info("market: okx funding stream for %d instruments", len(ids))
					go func() {
						defer close(done)
						s.Run(ctx, ids)
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
