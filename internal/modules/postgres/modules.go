package postgres

import (
	"context"
	"fmt"

	"signal_bot/internal/journal"
	"signal_bot/internal/modules/config"
	"signal_bot/pkg/db"
	"signal_bot/pkg/logger"

	"go.uber.org/fx"
)

// Module поднимает журнал предложений. Без db_dsn журнал = nil, бот работает без БД.
func Module() fx.Option {
	return fx.Module("postgres",
		fx.Provide(
			func(ctx context.Context, lc fx.Lifecycle, cfg *config.Config) (*journal.Journal, error) {
				if cfg.DB == "" {
					logger.Info("postgres: db_dsn is empty, journal disabled")
					return nil, nil
				}
				poolMaster, err := db.NewPool(ctx, db.PoolConfig{
					DSN:      cfg.DB,
					MaxConns: 4,
				})
				if err != nil {
					return nil, fmt.Errorf("failed to create poolMaster: %w", err)
				}

				tx := db.NewPgTxManager(poolMaster)
				j := journal.New(tx)
				lc.Append(fx.Hook{
					OnStart: func(ctx context.Context) error {
						if err := tx.Ping(ctx); err != nil {
							return fmt.Errorf("postgres ping: %w", err)
						}
						return j.EnsureSchema(ctx)
					},
					OnStop: func(context.Context) error {
						tx.Close()
						return nil
					},
				})
				return j, nil
			},
		),
	)
}
