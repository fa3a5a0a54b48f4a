package notify

import (
	"context"
	"os"

	"go.uber.org/fx"

	"signal_bot/internal/journal"
	"signal_bot/internal/modules/config"
	"signal_bot/internal/modules/health/service"
	"signal_bot/internal/notify"
	"signal_bot/internal/runner"
	"signal_bot/pkg/logger"
)

type Params struct {
	fx.In

	LC      fx.Lifecycle
	Cfg     *config.Config
	State   *service.State
	Journal *journal.Journal `optional:"true"`
}

// NewReporter собирает все включённые синки в один Fanout.
// Порядок: health, журнал, kafka, telegram, stdout.
func NewReporter(p Params) (runner.Reporter, error) {
	sinks := notify.Fanout{p.State}

	if p.Journal != nil {
		sinks = append(sinks, p.Journal)
	}

	if p.Cfg.Kafka.Enabled {
		k, err := notify.NewKafka(p.Cfg.Kafka)
		if err != nil {
			return nil, err
		}
		p.LC.Append(fx.Hook{
			OnStop: func(context.Context) error { return k.Close() },
		})
		sinks = append(sinks, k)
	}

	console := p.Cfg.Service.Console
	switch {
	case p.Cfg.Telegram.Token == "":
		logger.Warn("notify: TELEGRAM_TOKEN is empty, telegram disabled, printing to stdout")
		console = true
	case len(p.Cfg.Telegram.Tiers) == 0:
		logger.Warn("notify: no telegram tiers configured, telegram disabled, printing to stdout")
		console = true
	default:
		tg, err := notify.NewTelegram(p.Cfg.Telegram)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, tg)
	}

	if console {
		sinks = append(sinks, notify.NewStdout(os.Stdout))
	}

	logger.Info("notify: %d sinks", len(sinks))
	return sinks, nil
}

func Module() fx.Option {
	return fx.Module("notify",
		fx.Provide(NewReporter),
	)
}
