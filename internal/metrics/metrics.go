package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"signal_bot/internal/models"
)

// Recorder пишет метрики цикла. Nil-ресивер: no-op, чтобы runner
// можно было собрать без метрик (scan, тесты).
type Recorder struct {
	cycles     prometheus.Counter
	proposals  *prometheus.CounterVec
	suppressed *prometheus.CounterVec
	errors     prometheus.Counter
	duration   prometheus.Histogram
}

func New(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		cycles: f.NewCounter(prometheus.CounterOpts{
			Name: "signal_bot_cycles_total",
			Help: "Total number of completed scan cycles",
		}),
		proposals: f.NewCounterVec(prometheus.CounterOpts{
			Name: "signal_bot_proposals_total",
			Help: "Proposals emitted after arbitration, cooldown and cap",
		}, []string{"market", "kind", "side"}),
		suppressed: f.NewCounterVec(prometheus.CounterOpts{
			Name: "signal_bot_cooldown_suppressed_total",
			Help: "Proposals dropped by the cooldown ledger",
		}, []string{"market"}),
		errors: f.NewCounter(prometheus.CounterOpts{
			Name: "signal_bot_instrument_errors_total",
			Help: "Instruments excluded from a cycle because of fetch or processing errors",
		}),
		duration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "signal_bot_cycle_duration_seconds",
			Help:    "Duration of a scan cycle in seconds",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

func (r *Recorder) Suppressed(market models.Market) {
	if r == nil {
		return
	}
	r.suppressed.WithLabelValues(string(market)).Inc()
}

// Cycle: итог цикла целиком.
func (r *Recorder) Cycle(rep models.CycleReport) {
	if r == nil {
		return
	}
	r.cycles.Inc()
	r.errors.Add(float64(rep.Errors))
	r.duration.Observe(rep.Duration.Seconds())
	for market, props := range rep.Proposals {
		for _, p := range props {
			r.proposals.WithLabelValues(string(market), string(p.Kind), string(p.Side)).Inc()
		}
	}
}
