package strategy

import (
	"math"
	"strings"
	"testing"
	"time"

	"signal_bot/internal/models"
)

const tol = 1e-9

// emaCrossCloses: EMA9 ниже EMA21 на предпоследней свече и выше на последней,
// ATR(14) = 2 ровно при high=close+1, low=close-1.
func emaCrossCloses() []float64 {
	return []float64{
		94.5, 95.0, 96.0, 96.0, 97.0, 98.0, 98.5, 97.5, 98.0, 98.5,
		99.0, 98.0, 99.0, 99.5, 100.5, 101.5, 102.5, 103.5, 102.5, 101.5,
		100.5, 99.5, 98.5, 99.5, 99.0, 98.0, 98.0, 98.0, 98.5, 97.5,
		98.5, 97.5, 98.5, 99.0, 100.0, 99.0, 99.0, 98.5, 97.5, 97.5,
		96.5, 97.5, 98.0, 98.5, 97.5, 98.5, 99.0, 98.0, 99.0, 100.0,
		100.0, 99.5, 98.5, 98.0, 97.0, 98.0, 97.0, 98.0, 99.0, 100.0,
	}
}

func candlesFromCloses(closes []float64, spread float64) []models.Candle {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]models.Candle, len(closes))
	for i, c := range closes {
		out[i] = models.Candle{
			OpenTime: start.Add(time.Duration(i) * 15 * time.Minute),
			Open:     c,
			High:     c + spread,
			Low:      c - spread,
			Close:    c,
			Volume:   100,
		}
	}
	return out
}

func mirror(closes []float64) []float64 {
	out := make([]float64, len(closes))
	for i, c := range closes {
		out[i] = 200 - c
	}
	return out
}

func newTestDetector() *Detector {
	d := NewDetector(DefaultConfig(), nil)
	d.now = func() time.Time { return time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC) }
	return d
}

func byKind(props []models.Proposal, k models.Kind) []models.Proposal {
	var out []models.Proposal
	for _, p := range props {
		if p.Kind == k {
			out = append(out, p)
		}
	}
	return out
}

func near(a, b float64) bool { return math.Abs(a-b) <= tol }

func TestDetectEMACrossLongSpot(t *testing.T) {
	d := newTestDetector()
	props := d.Detect(Input{
		Instrument: "BTCUSDT",
		Market:     models.MarketSpot,
		Source:     "binance",
		Candles:    candlesFromCloses(emaCrossCloses(), 1),
	})

	if len(props) != 1 {
		t.Fatalf("expected exactly one proposal, got %d: %+v", len(props), props)
	}
	p := props[0]
	if p.Kind != models.KindEMACross || p.Side != models.SideLong {
		t.Fatalf("unexpected proposal %s %s", p.Kind, p.Side)
	}
	if p.Instrument != "BTCUSDT" || p.Market != models.MarketSpot || p.Source != "binance" {
		t.Fatalf("unexpected identity %s/%s/%s", p.Instrument, p.Market, p.Source)
	}
	want := models.Plan{Entry: 100, Stop: 97.6, TP1: 102.4, TP2: 104.8}
	if !near(p.Plan.Entry, want.Entry) || !near(p.Plan.Stop, want.Stop) ||
		!near(p.Plan.TP1, want.TP1) || !near(p.Plan.TP2, want.TP2) {
		t.Fatalf("plan = %+v, want entry=100 stop=97.6 tp1=102.4 tp2=104.8", p.Plan)
	}
	if p.Plan.Conditional {
		t.Fatalf("EMA cross entry must be immediate")
	}
	if !near(p.Plan.RiskPct, 2.4) {
		t.Fatalf("risk pct = %v, want 2.4", p.Plan.RiskPct)
	}
	if p.RSI == nil || p.VolumeMultiple == nil {
		t.Fatalf("diagnostics missing: rsi=%v vol=%v", p.RSI, p.VolumeMultiple)
	}
	if p.Funding != nil {
		t.Fatalf("spot proposal must not carry funding")
	}
	if p.Rationale == "" || p.CreatedAt.IsZero() {
		t.Fatalf("rationale/created_at not filled: %+v", p)
	}
}

func TestDetectBearishCrossDependsOnMarket(t *testing.T) {
	d := newTestDetector()
	candles := candlesFromCloses(mirror(emaCrossCloses()), 1)

	spot := d.Detect(Input{Instrument: "BTCUSDT", Market: models.MarketSpot, Source: "binance", Candles: candles})
	if len(spot) != 0 {
		t.Fatalf("spot: bearish cross must not produce a short, got %+v", spot)
	}

	funding := 0.0001
	fut := d.Detect(Input{Instrument: "BTCUSDT", Market: models.MarketFutures, Source: "binance", Candles: candles, Funding: &funding})
	if len(fut) != 1 {
		t.Fatalf("futures: expected one proposal, got %d", len(fut))
	}
	p := fut[0]
	if p.Kind != models.KindEMACross || p.Side != models.SideShort {
		t.Fatalf("unexpected proposal %s %s", p.Kind, p.Side)
	}
	if !near(p.Plan.Stop, 102.4) || !near(p.Plan.TP1, 97.6) || !near(p.Plan.TP2, 95.2) {
		t.Fatalf("short plan = %+v", p.Plan)
	}
	if p.Funding == nil || *p.Funding != funding {
		t.Fatalf("futures proposal must carry funding")
	}
}

func breakoutCandles() []models.Candle {
	closes := make([]float64, 60)
	for i := range closes {
		closes[i] = 49
	}
	cs := candlesFromCloses(closes, 1)
	last := &cs[len(cs)-1]
	last.Close, last.High, last.Low = 51, 51.5, 49.5
	return cs
}

func TestDetectBreakoutEntersAtTrigger(t *testing.T) {
	d := newTestDetector()
	props := d.Detect(Input{Instrument: "ETHUSDT", Market: models.MarketSpot, Source: "binance", Candles: breakoutCandles()})

	bo := byKind(props, models.KindBreakout)
	if len(bo) != 1 {
		t.Fatalf("expected one breakout, got %d (all: %+v)", len(bo), props)
	}
	p := bo[0]
	if p.Side != models.SideLong {
		t.Fatalf("side = %s, want LONG", p.Side)
	}
	if !near(p.Plan.Entry, 50.025) {
		t.Fatalf("entry = %v, want 50.025 (level 50 + 0.05%%)", p.Plan.Entry)
	}
	if p.Plan.Entry >= 51 {
		t.Fatalf("entry must sit at the breakout level, not at the current price")
	}
	if !p.Plan.Conditional || !strings.Contains(p.Plan.EntryRule, "above") {
		t.Fatalf("breakout entry must be a conditional trigger, got %q", p.Plan.EntryRule)
	}
	if p.Price != 51 {
		t.Fatalf("price = %v, want 51", p.Price)
	}
}

func rsiOversoldCandles() []models.Candle {
	closes := make([]float64, 46)
	for i := range closes {
		closes[i] = 100
	}
	for _, dlt := range []float64{-1, -1, 0, -1, -1, 0, -1, 2, -1, 0, -1, -1, 0, 0} {
		closes = append(closes, closes[len(closes)-1]+dlt)
	}
	return candlesFromCloses(closes, 0.5)
}

func TestDetectRSIOversoldIsWatch(t *testing.T) {
	d := newTestDetector()
	cs := rsiOversoldCandles()
	props := d.Detect(Input{Instrument: "SOLUSDT", Market: models.MarketSpot, Source: "binance", Candles: cs})

	rs := byKind(props, models.KindRSIExtreme)
	if len(rs) != 1 {
		t.Fatalf("expected one RSI proposal, got %d (all: %+v)", len(rs), props)
	}
	p := rs[0]
	if p.Side != models.SideWatchLong {
		t.Fatalf("side = %s, want WATCH_LONG", p.Side)
	}
	if p.RSI == nil || !near(*p.RSI, 20) {
		t.Fatalf("rsi = %v, want 20", p.RSI)
	}
	if !p.Plan.Conditional || !strings.HasPrefix(p.Plan.EntryRule, "wait for confirmation") {
		t.Fatalf("entry rule = %q, want conditional confirmation", p.Plan.EntryRule)
	}
	highs := models.Highs(cs)
	swing, _ := SwingHigh(highs, 3)
	if !near(p.Plan.Entry, swing*1.0005) {
		t.Fatalf("entry = %v, want %v", p.Plan.Entry, swing*1.0005)
	}
	if p.Plan.Entry <= p.Price {
		t.Fatalf("confirmation entry must be above the current price")
	}

	bo := byKind(d.Detect(Input{Instrument: "ETHUSDT", Market: models.MarketSpot, Source: "binance", Candles: breakoutCandles()}), models.KindBreakout)
	if len(bo) != 1 {
		t.Fatalf("breakout reference missing")
	}
	if p.Score >= bo[0].Score {
		t.Fatalf("watch score %v must be below breakout score %v", p.Score, bo[0].Score)
	}
}

func TestDetectInsufficientData(t *testing.T) {
	d := newTestDetector()
	cs := candlesFromCloses(emaCrossCloses()[:39], 1)
	if props := d.Detect(Input{Instrument: "BTCUSDT", Market: models.MarketSpot, Source: "binance", Candles: cs}); props != nil {
		t.Fatalf("expected no proposals on short series, got %+v", props)
	}
	if props := d.Detect(Input{Instrument: "BTCUSDT", Market: models.MarketSpot}); props != nil {
		t.Fatalf("expected no proposals on empty series, got %+v", props)
	}
}

func TestDetectDropsMalformedCandles(t *testing.T) {
	d := newTestDetector()
	clean := candlesFromCloses(emaCrossCloses(), 1)

	dirty := make([]models.Candle, 0, len(clean)+3)
	dirty = append(dirty, clean[:10]...)
	dirty = append(dirty, models.Candle{Open: math.NaN(), High: 1, Low: 1, Close: 1})
	dirty = append(dirty, clean[10:30]...)
	dirty = append(dirty, models.Candle{Open: 1, High: 1, Low: 1, Close: -5})
	dirty = append(dirty, clean[30:]...)
	dirty = append(dirty, models.Candle{Open: 1, High: math.Inf(1), Low: 1, Close: 1})

	// битая свеча в хвосте выкидывается, последней остаётся валидная
	got := d.Detect(Input{Instrument: "BTCUSDT", Market: models.MarketSpot, Source: "binance", Candles: dirty})
	want := d.Detect(Input{Instrument: "BTCUSDT", Market: models.MarketSpot, Source: "binance", Candles: clean})
	if len(got) != len(want) || len(got) != 1 {
		t.Fatalf("got %d proposals, want %d", len(got), len(want))
	}
	if got[0].Plan != want[0].Plan || got[0].Score != want[0].Score {
		t.Fatalf("malformed candles changed the result: %+v vs %+v", got[0], want[0])
	}
}

func TestDetectMarketRulesOverride(t *testing.T) {
	rules := map[models.Market]MarketRules{
		models.MarketSpot: {AllowShort: true},
	}
	d := NewDetector(DefaultConfig(), rules)
	props := d.Detect(Input{Instrument: "BTCUSDT", Market: models.MarketSpot, Source: "okx", Candles: candlesFromCloses(mirror(emaCrossCloses()), 1)})
	if len(props) != 1 || props[0].Side != models.SideShort {
		t.Fatalf("spot with allow_short: expected one SHORT, got %+v", props)
	}
}

func TestScorer(t *testing.T) {
	s := NewScorer(DefaultConfig().Score)
	vol := 5.0
	rsi := 100.0
	funding := 0.001

	tests := []struct {
		name string
		c    models.Candidate
		want float64
	}{
		{"bare breakout", models.Candidate{Kind: models.KindBreakout, Side: models.SideLong}, 3},
		{"volume capped", models.Candidate{Kind: models.KindEMACross, Side: models.SideLong, VolumeMultiple: &vol}, 2 + 1.5},
		{"oscillator capped", models.Candidate{Kind: models.KindBreakout, Side: models.SideLong, RSI: &rsi}, 4},
		{"watch penalty", models.Candidate{Kind: models.KindRSIExtreme, Side: models.SideWatchLong}, -0.5},
		{"funding futures", models.Candidate{Kind: models.KindBreakout, Side: models.SideShort, Market: models.MarketFutures, Funding: &funding}, 2},
		{"funding ignored on spot", models.Candidate{Kind: models.KindBreakout, Side: models.SideLong, Market: models.MarketSpot, Funding: &funding}, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := s.Score(tt.c); !near(got, tt.want) {
				t.Fatalf("Score = %v, want %v", got, tt.want)
			}
		})
	}
}

func rsiOverboughtCandles() []models.Candle {
	closes := make([]float64, 46)
	for i := range closes {
		closes[i] = 100
	}
	for _, dlt := range []float64{1, 1, 0, 1, 1, 0, 1, -2, 1, 0, 1, 1, 0, 0} {
		closes = append(closes, closes[len(closes)-1]+dlt)
	}
	return candlesFromCloses(closes, 0.5)
}

func TestDetectRSIOverboughtIgnoresShortWatch(t *testing.T) {
	rules := map[models.Market]MarketRules{
		models.MarketSpot: {AllowShort: false, ShortWatch: false},
	}
	d := NewDetector(DefaultConfig(), rules)
	cs := rsiOverboughtCandles()
	props := d.Detect(Input{Instrument: "SOLUSDT", Market: models.MarketSpot, Source: "binance", Candles: cs})

	rs := byKind(props, models.KindRSIExtreme)
	if len(rs) != 1 {
		t.Fatalf("expected one RSI proposal with short_watch off, got %+v", props)
	}
	p := rs[0]
	if p.Side != models.SideWatchShort {
		t.Fatalf("side = %s, want WATCH_SHORT", p.Side)
	}
	if p.RSI == nil || !near(*p.RSI, 80) {
		t.Fatalf("rsi = %v, want 80", p.RSI)
	}
	swing, _ := SwingLow(models.Lows(cs), 3)
	if !near(p.Plan.Entry, swing*0.9995) {
		t.Fatalf("entry = %v, want %v", p.Plan.Entry, swing*0.9995)
	}
	if !(p.Plan.TP2 < p.Plan.TP1 && p.Plan.TP1 < p.Plan.Entry && p.Plan.Entry < p.Plan.Stop) {
		t.Fatalf("short levels out of order: %+v", p.Plan)
	}
}
