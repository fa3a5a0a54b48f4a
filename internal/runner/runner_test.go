package runner

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	"signal_bot/internal/cooldown"
	"signal_bot/internal/exchange"
	"signal_bot/internal/models"
	"signal_bot/internal/strategy"
)

// EMA9 пересекает EMA21 снизу вверх на последней свече, ATR(14) = 2.
var crossCloses = []float64{
	94.5, 95.0, 96.0, 96.0, 97.0, 98.0, 98.5, 97.5, 98.0, 98.5,
	99.0, 98.0, 99.0, 99.5, 100.5, 101.5, 102.5, 103.5, 102.5, 101.5,
	100.5, 99.5, 98.5, 99.5, 99.0, 98.0, 98.0, 98.0, 98.5, 97.5,
	98.5, 97.5, 98.5, 99.0, 100.0, 99.0, 99.0, 98.5, 97.5, 97.5,
	96.5, 97.5, 98.0, 98.5, 97.5, 98.5, 99.0, 98.0, 99.0, 100.0,
	100.0, 99.5, 98.5, 98.0, 97.0, 98.0, 97.0, 98.0, 99.0, 100.0,
}

func crossCandles() []models.Candle {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]models.Candle, len(crossCloses))
	for i, c := range crossCloses {
		out[i] = models.Candle{
			OpenTime: start.Add(time.Duration(i) * 15 * time.Minute),
			Open:     c, High: c + 1, Low: c - 1, Close: c, Volume: 100,
		}
	}
	return out
}

type fakeSource struct {
	name    string
	markets []models.Market
	// по инструменту; отсутствующий инструмент: пустой ряд
	candles map[string][]models.Candle
	fail    map[string]error
	panicOn string
	funding *float64

	mu    sync.Mutex
	calls int
}

func (f *fakeSource) Name() string { return f.name }

func (f *fakeSource) Supports(m models.Market) bool {
	for _, x := range f.markets {
		if x == m {
			return true
		}
	}
	return false
}

func (f *fakeSource) Candles(_ context.Context, instrument string, _ models.Market, _ string, _ int) ([]models.Candle, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if instrument == f.panicOn {
		panic("boom")
	}
	if err := f.fail[instrument]; err != nil {
		return nil, err
	}
	return f.candles[instrument], nil
}

func (f *fakeSource) FundingRate(context.Context, string) (float64, error) {
	if f.funding == nil {
		return 0, errors.New("funding unavailable")
	}
	return *f.funding, nil
}

type captureReporter struct {
	mu      sync.Mutex
	reports []models.CycleReport
}

func (c *captureReporter) Notify(_ context.Context, r models.CycleReport) error {
	c.mu.Lock()
	c.reports = append(c.reports, r)
	c.mu.Unlock()
	return nil
}

func spotOnly(cooldownWindow time.Duration, max int) map[models.Market]MarketSettings {
	return map[models.Market]MarketSettings{
		models.MarketSpot: {Cooldown: cooldownWindow, MaxProposals: max},
	}
}

func newTestRunner(opts Options, ledger cooldown.Ledger, sources ...*fakeSource) (*Runner, *time.Time) {
	srcs := make([]exchange.Source, 0, len(sources))
	for _, s := range sources {
		srcs = append(srcs, s)
	}
	if opts.PreferredSource == "" {
		opts.PreferredSource = "binance"
	}
	r := New(opts, srcs, strategy.NewDetector(strategy.DefaultConfig(), nil), ledger, nil, nil)
	now := time.Date(2024, 1, 2, 12, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return now }
	seq := 0
	r.newID = func() string {
		seq++
		return fmt.Sprintf("id-%d", seq)
	}
	return r, &now
}

func near(a, b float64) bool { return math.Abs(a-b) <= 1e-9 }

func TestRunCycleEMACross(t *testing.T) {
	src := &fakeSource{
		name:    "binance",
		markets: []models.Market{models.MarketSpot},
		candles: map[string][]models.Candle{"BTCUSDT": crossCandles()},
	}
	r, _ := newTestRunner(Options{Markets: spotOnly(time.Hour, 5)}, cooldown.NewMemory(), src)

	rep := r.RunCycle(context.Background(), []string{"BTCUSDT"})
	if rep.Errors != 0 || rep.Suppressed != 0 {
		t.Fatalf("errors=%d suppressed=%d, want 0/0", rep.Errors, rep.Suppressed)
	}
	props := rep.Proposals[models.MarketSpot]
	if len(props) != 1 {
		t.Fatalf("got %d spot proposals, want 1", len(props))
	}
	p := props[0]
	if p.Kind != models.KindEMACross || p.Side != models.SideLong || p.Instrument != "BTCUSDT" {
		t.Fatalf("unexpected proposal %s %s %s", p.Instrument, p.Kind, p.Side)
	}
	if !near(p.Plan.Entry, 100) || !near(p.Plan.Stop, 97.6) || !near(p.Plan.TP1, 102.4) || !near(p.Plan.TP2, 104.8) {
		t.Fatalf("plan = %+v", p.Plan)
	}
	if p.ID != "id-1" {
		t.Fatalf("id = %q, want id-1", p.ID)
	}
}

func TestRunCycleCooldownGate(t *testing.T) {
	src := &fakeSource{
		name:    "binance",
		markets: []models.Market{models.MarketSpot},
		candles: map[string][]models.Candle{"BTCUSDT": crossCandles()},
	}
	r, now := newTestRunner(Options{Markets: spotOnly(60*time.Minute, 5)}, cooldown.NewMemory(), src)
	ctx := context.Background()

	first := r.RunCycle(ctx, []string{"BTCUSDT"})
	if first.Total() != 1 {
		t.Fatalf("first cycle: %d proposals, want 1", first.Total())
	}

	*now = now.Add(5 * time.Minute)
	second := r.RunCycle(ctx, []string{"BTCUSDT"})
	if second.Total() != 0 {
		t.Fatalf("second cycle: %d proposals, want 0", second.Total())
	}
	if second.Suppressed != 1 {
		t.Fatalf("second cycle: suppressed=%d, want 1", second.Suppressed)
	}
	if second.Errors != 0 {
		t.Fatalf("suppression must not count as an error")
	}

	*now = now.Add(56 * time.Minute)
	third := r.RunCycle(ctx, []string{"BTCUSDT"})
	if third.Total() != 1 {
		t.Fatalf("after the window: %d proposals, want 1", third.Total())
	}
}

func TestRunCycleCountsFailures(t *testing.T) {
	src := &fakeSource{
		name:    "binance",
		markets: []models.Market{models.MarketSpot},
		candles: map[string][]models.Candle{
			"BTCUSDT": crossCandles(),
			"SHORT":   crossCandles()[:10],
		},
		fail:    map[string]error{"BADUSDT": errors.New("http 500")},
		panicOn: "PANICUSDT",
	}
	r, _ := newTestRunner(Options{Markets: spotOnly(time.Hour, 5), Concurrency: 2}, nil, src)

	rep := r.RunCycle(context.Background(), []string{"BADUSDT", "BTCUSDT", "PANICUSDT", "SHORT"})
	if rep.Errors != 2 {
		t.Fatalf("errors = %d, want 2", rep.Errors)
	}
	if len(rep.Failures) != 2 || rep.Failures[0].Instrument != "BADUSDT" || rep.Failures[1].Instrument != "PANICUSDT" {
		t.Fatalf("failures = %+v", rep.Failures)
	}
	if rep.Total() != 1 || rep.Proposals[models.MarketSpot][0].Instrument != "BTCUSDT" {
		t.Fatalf("expected only BTCUSDT to survive, got %+v", rep.Proposals)
	}
	if rep.Instruments != 4 {
		t.Fatalf("instruments = %d, want 4", rep.Instruments)
	}
}

func TestRunCyclePreferredSourceWinsTie(t *testing.T) {
	for _, preferred := range []string{"binance", "okx"} {
		okx := &fakeSource{name: "okx", markets: []models.Market{models.MarketSpot}, candles: map[string][]models.Candle{"BTCUSDT": crossCandles()}}
		bin := &fakeSource{name: "binance", markets: []models.Market{models.MarketSpot}, candles: map[string][]models.Candle{"BTCUSDT": crossCandles()}}

		for _, order := range [][]*fakeSource{{okx, bin}, {bin, okx}} {
			r, _ := newTestRunner(Options{Markets: spotOnly(time.Hour, 5), PreferredSource: preferred}, nil, order...)
			rep := r.RunCycle(context.Background(), []string{"BTCUSDT"})
			props := rep.Proposals[models.MarketSpot]
			if len(props) != 1 {
				t.Fatalf("got %d proposals, want 1 (one winner per instrument)", len(props))
			}
			if props[0].Source != preferred {
				t.Fatalf("winner = %s, want %s", props[0].Source, preferred)
			}
		}
	}
}

func TestRunCycleCapDoesNotConsumeCooldown(t *testing.T) {
	candles := map[string][]models.Candle{
		"AAAUSDT": crossCandles(),
		"BBBUSDT": crossCandles(),
		"CCCUSDT": crossCandles(),
	}
	src := &fakeSource{name: "binance", markets: []models.Market{models.MarketSpot}, candles: candles}
	r, now := newTestRunner(Options{Markets: spotOnly(time.Hour, 2)}, cooldown.NewMemory(), src)
	ctx := context.Background()
	instruments := []string{"CCCUSDT", "AAAUSDT", "BBBUSDT"}

	first := r.RunCycle(ctx, instruments)
	got := first.Proposals[models.MarketSpot]
	if len(got) != 2 || got[0].Instrument != "AAAUSDT" || got[1].Instrument != "BBBUSDT" {
		t.Fatalf("first cycle = %+v, want AAAUSDT, BBBUSDT", got)
	}

	*now = now.Add(5 * time.Minute)
	second := r.RunCycle(ctx, instruments)
	got = second.Proposals[models.MarketSpot]
	if len(got) != 1 || got[0].Instrument != "CCCUSDT" {
		t.Fatalf("second cycle = %+v, want only CCCUSDT", got)
	}
	if second.Suppressed != 2 {
		t.Fatalf("suppressed = %d, want 2", second.Suppressed)
	}
}

func TestRunCycleCrossMarketPick(t *testing.T) {
	funding := 0.001
	both := []models.Market{models.MarketSpot, models.MarketFutures}
	markets := map[models.Market]MarketSettings{
		models.MarketSpot:    {Cooldown: time.Hour, MaxProposals: 5},
		models.MarketFutures: {Cooldown: time.Hour, MaxProposals: 5},
	}
	newSrc := func() *fakeSource {
		return &fakeSource{name: "binance", markets: both, candles: map[string][]models.Candle{"BTCUSDT": crossCandles()}, funding: &funding}
	}

	r, _ := newTestRunner(Options{Markets: markets, CrossMarketPick: true}, nil, newSrc())
	rep := r.RunCycle(context.Background(), []string{"BTCUSDT"})
	if len(rep.Proposals[models.MarketSpot]) != 1 || len(rep.Proposals[models.MarketFutures]) != 0 {
		t.Fatalf("funding penalty must hand the pick to spot: %+v", rep.Proposals)
	}
	if len(rep.Markets) != 2 || rep.Markets[0] != models.MarketSpot {
		t.Fatalf("markets = %v, want [spot futures]", rep.Markets)
	}

	r, _ = newTestRunner(Options{Markets: markets}, nil, newSrc())
	rep = r.RunCycle(context.Background(), []string{"BTCUSDT"})
	if len(rep.Proposals[models.MarketSpot]) != 1 || len(rep.Proposals[models.MarketFutures]) != 1 {
		t.Fatalf("without cross-market pick both markets keep a winner: %+v", rep.Proposals)
	}
	fut := rep.Proposals[models.MarketFutures][0]
	if fut.Funding == nil || *fut.Funding != funding {
		t.Fatalf("futures proposal must carry funding")
	}
	if fut.Score >= rep.Proposals[models.MarketSpot][0].Score {
		t.Fatalf("futures score %v must include the funding penalty", fut.Score)
	}
}

func TestRunCycleFundingFailureIsNotFatal(t *testing.T) {
	src := &fakeSource{
		name:    "binance",
		markets: []models.Market{models.MarketFutures},
		candles: map[string][]models.Candle{"BTCUSDT": crossCandles()},
	}
	markets := map[models.Market]MarketSettings{models.MarketFutures: {Cooldown: time.Hour}}
	r, _ := newTestRunner(Options{Markets: markets}, nil, src)

	rep := r.RunCycle(context.Background(), []string{"BTCUSDT"})
	if rep.Errors != 0 || len(rep.Proposals[models.MarketFutures]) != 1 {
		t.Fatalf("errors=%d proposals=%+v", rep.Errors, rep.Proposals)
	}
	if rep.Proposals[models.MarketFutures][0].Funding != nil {
		t.Fatalf("funding must be absent when the fetch failed")
	}
}

func TestStartReportsFirstCycle(t *testing.T) {
	src := &fakeSource{
		name:    "binance",
		markets: []models.Market{models.MarketSpot},
		candles: map[string][]models.Candle{"BTCUSDT": crossCandles()},
	}
	rep := &captureReporter{}
	r := New(Options{
		Instruments: []string{"BTCUSDT"},
		Interval:    time.Hour,
		Markets:     spotOnly(time.Hour, 5),
	}, []exchange.Source{src}, strategy.NewDetector(strategy.DefaultConfig(), nil), cooldown.NewMemory(), rep, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r.Start(ctx)

	if len(rep.reports) != 1 {
		t.Fatalf("got %d reports, want 1", len(rep.reports))
	}
	if rep.reports[0].Total() != 1 || rep.reports[0].Proposals[models.MarketSpot][0].ID == "" {
		t.Fatalf("unexpected report %+v", rep.reports[0])
	}
}
