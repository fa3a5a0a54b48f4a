package runner

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/opentracing/opentracing-go"
	"github.com/opentracing/opentracing-go/ext"
	"go.uber.org/zap"

	"signal_bot/internal/cooldown"
	"signal_bot/internal/exchange"
	"signal_bot/internal/metrics"
	"signal_bot/internal/models"
	"signal_bot/internal/strategy"
	"signal_bot/pkg/logger"
	"signal_bot/pkg/tracing"
)

// Reporter получает итог каждого цикла (нотификаторы, health, журнал).
type Reporter interface {
	Notify(ctx context.Context, report models.CycleReport) error
}

type MarketSettings struct {
	Cooldown time.Duration
	// 0 = без ограничения
	MaxProposals int
}

type Options struct {
	Instruments     []string
	Interval        time.Duration
	CandleInterval  string
	CandleLimit     int
	Concurrency     int
	PreferredSource string
	// 0 = только точная ничья; дефолт 0.01 задаёт конфиг
	TieEpsilon float64
	// spot против futures по одному инструменту: остаётся один
	CrossMarketPick bool
	// только включённые рынки
	Markets map[models.Market]MarketSettings
}

// InstrumentResult: исход по одному инструменту: либо победители
// по рынкам, либо причина, по которой инструмент выпал из цикла.
type InstrumentResult struct {
	Instrument string
	Proposals  map[models.Market]models.Proposal
	Err        error
}

type Runner struct {
	opts     Options
	sources  []exchange.Source
	detector *strategy.Detector
	ledger   cooldown.Ledger
	reporter Reporter
	metrics  *metrics.Recorder

	now   func() time.Time
	newID func() string

	// один цикл за раз: ledger и сборка результата
	mu sync.Mutex
}

func New(
	opts Options,
	sources []exchange.Source,
	detector *strategy.Detector,
	ledger cooldown.Ledger,
	reporter Reporter,
	rec *metrics.Recorder,
) *Runner {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 8
	}
	// 0: предпочтительная биржа выигрывает только точную ничью
	if opts.TieEpsilon < 0 {
		opts.TieEpsilon = 0
	}
	if ledger == nil {
		ledger = cooldown.NewMemory()
	}
	return &Runner{
		opts:     opts,
		sources:  sources,
		detector: detector,
		ledger:   ledger,
		reporter: reporter,
		metrics:  rec,
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

// markets: включённые рынки в фиксированном порядке.
func (r *Runner) markets() []models.Market {
	out := make([]models.Market, 0, len(r.opts.Markets))
	for m := range r.opts.Markets {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] > out[j] }) // spot, futures
	return out
}

// Start: цикл сразу и дальше по тикеру, пока жив ctx.
func (r *Runner) Start(ctx context.Context) {
	r.tick(ctx)
	if r.opts.Interval <= 0 {
		return
	}
	t := time.NewTicker(r.opts.Interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			r.tick(ctx)
		}
	}
}

func (r *Runner) tick(ctx context.Context) {
	rep := r.RunCycle(ctx, r.opts.Instruments)
	logger.L().Info("cycle done",
		zap.Int("instruments", rep.Instruments),
		zap.Int("proposals", rep.Total()),
		zap.Int("errors", rep.Errors),
		zap.Int("suppressed", rep.Suppressed),
		zap.Duration("took", rep.Duration),
	)
	if r.reporter != nil {
		if err := r.reporter.Notify(ctx, rep); err != nil {
			logger.Error("notify: %v", err)
		}
	}
	if p, ok := r.ledger.(interface {
		Prune(now time.Time, maxAge time.Duration) int
	}); ok {
		p.Prune(rep.StartedAt, r.maxCooldown())
	}
}

func (r *Runner) maxCooldown() time.Duration {
	var d time.Duration
	for _, s := range r.opts.Markets {
		if s.Cooldown > d {
			d = s.Cooldown
		}
	}
	return d
}

// RunCycle: один проход по инструментам. Не падает: ошибки по инструментам
// считаются в Errors, подавленные кулдауном: в Suppressed.
func (r *Runner) RunCycle(ctx context.Context, instruments []string) models.CycleReport {
	r.mu.Lock()
	defer r.mu.Unlock()

	span, ctx := tracing.StartSpan(ctx, "runner.cycle", opentracing.Tag{Key: "instruments", Value: len(instruments)})
	defer span.Finish()

	started := r.now()
	markets := r.markets()
	rep := models.CycleReport{
		StartedAt:   started,
		Markets:     markets,
		Proposals:   make(map[models.Market][]models.Proposal, len(markets)),
		Instruments: len(instruments),
	}

	perMarket := make(map[models.Market][]models.Proposal, len(markets))
	for _, res := range r.scanAll(ctx, instruments) {
		if res.Err != nil {
			rep.Errors++
			rep.Failures = append(rep.Failures, models.InstrumentFailure{
				Instrument: res.Instrument,
				Reason:     res.Err.Error(),
			})
			logger.L().Warn("instrument excluded", zap.String("instrument", res.Instrument), zap.Error(res.Err))
			continue
		}
		for m, p := range res.Proposals {
			perMarket[m] = append(perMarket[m], p)
		}
	}

	for _, m := range markets {
		rep.Proposals[m] = r.gate(ctx, m, perMarket[m], started, &rep)
	}

	rep.Duration = r.now().Sub(started)
	span.SetTag("proposals", rep.Total())
	span.SetTag("errors", rep.Errors)
	r.metrics.Cycle(rep)
	return rep
}

// gate: ранжирование, кулдаун по порядку ранга, обрезка по лимиту рынка.
// Кулдаун проверяем только пока есть место, чтобы отрезанное лимитом
// не занимало ключ.
func (r *Runner) gate(ctx context.Context, m models.Market, cands []models.Proposal, now time.Time, rep *models.CycleReport) []models.Proposal {
	strategy.Rank(cands, r.opts.PreferredSource)
	settings := r.opts.Markets[m]

	accepted := make([]models.Proposal, 0, len(cands))
	for _, p := range cands {
		if settings.MaxProposals > 0 && len(accepted) >= settings.MaxProposals {
			break
		}
		ok, err := r.ledger.CheckAndMark(ctx, p.Key(), now, settings.Cooldown)
		if err != nil {
			logger.L().Warn("cooldown ledger", zap.String("key", p.Key().String()), zap.Error(err))
		}
		if !ok {
			rep.Suppressed++
			r.metrics.Suppressed(m)
			continue
		}
		p.ID = r.newID()
		accepted = append(accepted, p)
	}
	return accepted
}

// scanAll: параллельно, но не больше Concurrency инструментов разом.
// Результаты лежат в порядке instruments, независимо от порядка завершения.
func (r *Runner) scanAll(ctx context.Context, instruments []string) []InstrumentResult {
	results := make([]InstrumentResult, len(instruments))
	sem := make(chan struct{}, r.opts.Concurrency)
	var wg sync.WaitGroup

	for i, inst := range instruments {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			results[i] = r.scanSafe(ctx, inst)
		}()
	}
	wg.Wait()
	return results
}

func (r *Runner) scanSafe(ctx context.Context, instrument string) (res InstrumentResult) {
	defer func() {
		if p := recover(); p != nil {
			res = InstrumentResult{Instrument: instrument, Err: fmt.Errorf("panic: %v", p)}
		}
	}()
	return r.scanInstrument(ctx, instrument)
}

func (r *Runner) scanInstrument(ctx context.Context, instrument string) InstrumentResult {
	span, ctx := tracing.StartSpan(ctx, "runner.scan_instrument", opentracing.Tag{Key: "instrument", Value: instrument})
	defer span.Finish()

	res := InstrumentResult{Instrument: instrument, Proposals: make(map[models.Market]models.Proposal)}
	for _, m := range r.markets() {
		var cands []models.Proposal
		for _, src := range r.sources {
			if !src.Supports(m) {
				continue
			}
			candles, err := src.Candles(ctx, instrument, m, r.opts.CandleInterval, r.opts.CandleLimit)
			if err != nil {
				ext.Error.Set(span, true)
				res.Err = fmt.Errorf("%s %s candles: %w", src.Name(), m, err)
				return res
			}

			var funding *float64
			if m == models.MarketFutures {
				if rate, err := src.FundingRate(ctx, instrument); err == nil {
					funding = &rate
				} else {
					logger.L().Debug("funding unavailable",
						zap.String("source", src.Name()), zap.String("instrument", instrument), zap.Error(err))
				}
			}

			cands = append(cands, r.detector.Detect(strategy.Input{
				Instrument: instrument,
				Market:     m,
				Source:     src.Name(),
				Candles:    candles,
				Funding:    funding,
			})...)
		}
		if best, ok := strategy.Arbitrate(cands, r.opts.PreferredSource, r.opts.TieEpsilon); ok {
			res.Proposals[m] = best
		}
	}

	if r.opts.CrossMarketPick {
		spot, okS := res.Proposals[models.MarketSpot]
		fut, okF := res.Proposals[models.MarketFutures]
		if okS && okF {
			best, _ := strategy.PickMarket(spot, fut)
			res.Proposals = map[models.Market]models.Proposal{best.Market: best}
		}
	}
	return res
}
