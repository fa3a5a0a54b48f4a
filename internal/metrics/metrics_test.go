package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"signal_bot/internal/models"
)

func TestRecorderCycle(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := New(reg)

	p := models.Proposal{Candidate: models.Candidate{Kind: models.KindBreakout, Side: models.SideLong}}
	r.Cycle(models.CycleReport{
		Duration: 2 * time.Second,
		Errors:   3,
		Proposals: map[models.Market][]models.Proposal{
			models.MarketSpot: {p, p},
		},
	})
	r.Suppressed(models.MarketFutures)

	if got := testutil.ToFloat64(r.cycles); got != 1 {
		t.Errorf("cycles = %v, want 1", got)
	}
	if got := testutil.ToFloat64(r.errors); got != 3 {
		t.Errorf("errors = %v, want 3", got)
	}
	if got := testutil.ToFloat64(r.proposals.WithLabelValues("spot", "BREAKOUT", "LONG")); got != 2 {
		t.Errorf("proposals = %v, want 2", got)
	}
	if got := testutil.ToFloat64(r.suppressed.WithLabelValues("futures")); got != 1 {
		t.Errorf("suppressed = %v, want 1", got)
	}
}

func TestNilRecorderIsNoop(t *testing.T) {
	var r *Recorder
	r.Cycle(models.CycleReport{})
	r.Suppressed(models.MarketSpot)
}
