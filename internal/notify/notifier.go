package notify

import (
	"context"
	"errors"
	"fmt"

	"signal_bot/internal/models"
)

// Notifier получает итог цикла и доставляет его куда-то.
type Notifier interface {
	Notify(ctx context.Context, report models.CycleReport) error
}

type named interface {
	Name() string
}

// Fanout рассылает отчёт во все синки; ошибка одного не мешает остальным.
type Fanout []Notifier

func (f Fanout) Notify(ctx context.Context, report models.CycleReport) error {
	var errs []error
	for _, n := range f {
		if n == nil {
			continue
		}
		if err := n.Notify(ctx, report); err != nil {
			name := fmt.Sprintf("%T", n)
			if nn, ok := n.(named); ok {
				name = nn.Name()
			}
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

// capPerMarket: первые max предложений каждого рынка (0, все).
func capPerMarket(report models.CycleReport, max int) models.CycleReport {
	if max <= 0 {
		return report
	}
	out := report
	out.Proposals = make(map[models.Market][]models.Proposal, len(report.Proposals))
	for m, ps := range report.Proposals {
		if len(ps) > max {
			ps = ps[:max]
		}
		out.Proposals[m] = ps
	}
	return out
}
