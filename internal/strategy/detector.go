package strategy

import (
	"fmt"
	"time"

	"signal_bot/internal/models"
)

// Input: данные по одной тройке (инструмент, рынок, биржа).
type Input struct {
	Instrument string
	Market     models.Market
	Source     string
	Candles    []models.Candle // от старых к новым
	Funding    *float64        // только futures
}

// Detector: три независимых семейства правил: кросс EMA, пробой, экстремум RSI.
// Каждое сработавшее правило сразу даёт готовый Proposal (план + скор).
type Detector struct {
	cfg    Config
	rules  map[models.Market]MarketRules
	plans  PlanBuilder
	scorer *Scorer
	now    func() time.Time
}

func NewDetector(cfg Config, rules map[models.Market]MarketRules) *Detector {
	if rules == nil {
		rules = DefaultRules()
	}
	return &Detector{
		cfg:    cfg,
		rules:  rules,
		plans:  NewPlanBuilder(cfg),
		scorer: NewScorer(cfg.Score),
		now:    time.Now,
	}
}

// snapshot: индикаторы, посчитанные один раз на вызов Detect.
type snapshot struct {
	in      Input
	closes  []float64
	highs   []float64
	lows    []float64
	price   float64
	atr     float64
	rsi     *float64
	vol     *float64
	funding *float64
}

// Detect не возвращает ошибок: мало данных: нет кандидатов.
func (d *Detector) Detect(in Input) []models.Proposal {
	candles := models.SanitizeCandles(in.Candles)
	if len(candles) < d.cfg.MinCandles || len(candles) < 2 {
		return nil
	}

	s := snapshot{
		in:     in,
		closes: models.Closes(candles),
		highs:  models.Highs(candles),
		lows:   models.Lows(candles),
	}
	s.price = s.closes[len(s.closes)-1]
	if atr, ok := ATR(s.highs, s.lows, s.closes, d.cfg.ATRPeriod); ok {
		s.atr = atr
	}
	if rsi, ok := RSI(s.closes, d.cfg.RSIPeriod); ok {
		s.rsi = &rsi
	}
	if vm, ok := VolumeMultiple(models.Volumes(candles), d.cfg.VolumeLookback); ok {
		s.vol = &vm
	}
	if in.Market == models.MarketFutures && in.Funding != nil {
		f := *in.Funding
		s.funding = &f
	}

	rules, ok := d.rules[in.Market]
	if !ok {
		rules = DefaultRules()[in.Market]
	}

	var out []models.Proposal
	out = d.trendCross(out, s, rules)
	out = d.breakout(out, s, rules)
	out = d.oscillatorExtreme(out, s)
	return out
}

func (d *Detector) trendCross(out []models.Proposal, s snapshot, rules MarketRules) []models.Proposal {
	prev := s.closes[:len(s.closes)-1]
	fastNow, ok1 := EMA(s.closes, d.cfg.EMAFast)
	slowNow, ok2 := EMA(s.closes, d.cfg.EMASlow)
	fastPrev, ok3 := EMA(prev, d.cfg.EMAFast)
	slowPrev, ok4 := EMA(prev, d.cfg.EMASlow)
	if !ok1 || !ok2 || !ok3 || !ok4 {
		return out
	}

	switch {
	case fastPrev <= slowPrev && fastNow > slowNow:
		reason := fmt.Sprintf("EMA%d crossed above EMA%d: %.6g > %.6g (prev %.6g <= %.6g)",
			d.cfg.EMAFast, d.cfg.EMASlow, fastNow, slowNow, fastPrev, slowPrev)
		return d.emit(out, s, models.KindEMACross, models.SideLong, 0, reason)

	case fastPrev >= slowPrev && fastNow < slowNow:
		// на споте медвежий кросс: это сигнал на выход, а не вход
		if !rules.AllowShort {
			return out
		}
		reason := fmt.Sprintf("EMA%d crossed below EMA%d: %.6g < %.6g (prev %.6g >= %.6g)",
			d.cfg.EMAFast, d.cfg.EMASlow, fastNow, slowNow, fastPrev, slowPrev)
		return d.emit(out, s, models.KindEMACross, models.SideShort, 0, reason)
	}
	return out
}

func (d *Detector) breakout(out []models.Proposal, s snapshot, rules MarketRules) []models.Proposal {
	// канал по предыдущим N свечам, текущая не входит
	n := len(s.highs)
	hh, ok1 := SwingHigh(s.highs[:n-1], d.cfg.BreakoutLookback)
	ll, ok2 := SwingLow(s.lows[:n-1], d.cfg.BreakoutLookback)
	if !ok1 || !ok2 {
		return out
	}
	buf := d.cfg.TriggerBufferPct / 100

	if s.price > hh {
		reason := fmt.Sprintf("breakout UP: price=%.6g > high%d=%.6g", s.price, d.cfg.BreakoutLookback, hh)
		return d.emit(out, s, models.KindBreakout, models.SideLong, hh*(1+buf), reason)
	}
	if s.price < ll {
		side := models.SideShort
		if !rules.AllowShort {
			if !rules.ShortWatch {
				return out
			}
			side = models.SideWatchShort
		}
		reason := fmt.Sprintf("breakdown: price=%.6g < low%d=%.6g", s.price, d.cfg.BreakoutLookback, ll)
		return d.emit(out, s, models.KindBreakout, side, ll*(1-buf), reason)
	}
	return out
}

func (d *Detector) oscillatorExtreme(out []models.Proposal, s snapshot) []models.Proposal {
	if s.rsi == nil {
		return out
	}
	rsi := *s.rsi
	buf := d.cfg.TriggerBufferPct / 100

	switch {
	case rsi <= d.cfg.RSILow:
		swing, ok := SwingHigh(s.highs, d.cfg.ConfirmLookback)
		if !ok {
			return out
		}
		trigger := swing * (1 + buf)
		reason := fmt.Sprintf("RSI%d oversold: %.2f <= %.2f, wait for break above %.6g",
			d.cfg.RSIPeriod, rsi, d.cfg.RSILow, trigger)
		return d.emit(out, s, models.KindRSIExtreme, models.SideWatchLong, trigger, reason)

	case rsi >= d.cfg.RSIHigh:
		// от правил рынка не зависит: это не вход
		swing, ok := SwingLow(s.lows, d.cfg.ConfirmLookback)
		if !ok {
			return out
		}
		trigger := swing * (1 - buf)
		reason := fmt.Sprintf("RSI%d overbought: %.2f >= %.2f, wait for break below %.6g",
			d.cfg.RSIPeriod, rsi, d.cfg.RSIHigh, trigger)
		return d.emit(out, s, models.KindRSIExtreme, models.SideWatchShort, trigger, reason)
	}
	return out
}

func (d *Detector) emit(out []models.Proposal, s snapshot, kind models.Kind, side models.Side, trigger float64, reason string) []models.Proposal {
	plan, ok := d.plans.Build(kind, side, s.price, s.atr, trigger)
	if !ok {
		return out
	}
	c := models.Candidate{
		Instrument:     s.in.Instrument,
		Market:         s.in.Market,
		Source:         s.in.Source,
		Kind:           kind,
		Side:           side,
		Price:          s.price,
		RSI:            s.rsi,
		VolumeMultiple: s.vol,
		Funding:        s.funding,
		Rationale:      reason,
	}
	return append(out, models.Proposal{
		Candidate: c,
		Score:     d.scorer.Score(c),
		Plan:      plan,
		CreatedAt: d.now(),
	})
}
