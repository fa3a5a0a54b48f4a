package strategy

import (
	"fmt"
	"math"

	"signal_bot/internal/models"
)

// PlanBuilder строит вход/стоп/тейки от волатильности.
type PlanBuilder struct {
	ATRMultiplier   float64
	FallbackRiskPct float64
}

func NewPlanBuilder(cfg Config) PlanBuilder {
	return PlanBuilder{
		ATRMultiplier:   cfg.ATRMultiplier,
		FallbackRiskPct: cfg.FallbackRiskPct,
	}
}

// Build: risk = ATRMultiplier*ATR, а если ATR нет: FallbackRiskPct% от входа.
// trigger > 0 переносит вход на уровень подтверждения (пробой, RSI);
// такой вход условный. TP1 = 1R, TP2 = 2R от входа.
func (b PlanBuilder) Build(kind models.Kind, side models.Side, price, atr, trigger float64) (models.Plan, bool) {
	entry := price
	conditional := trigger > 0
	if conditional {
		entry = trigger
	}
	if entry <= 0 || math.IsNaN(entry) || math.IsInf(entry, 0) {
		return models.Plan{}, false
	}

	var risk float64
	if atr > 0 {
		risk = b.ATRMultiplier * atr
	} else {
		risk = entry * b.FallbackRiskPct / 100
	}
	if risk <= 0 || math.IsNaN(risk) || math.IsInf(risk, 0) {
		return models.Plan{}, false
	}

	p := models.Plan{Entry: entry, Risk: risk, Conditional: conditional}
	if side.IsLong() {
		p.Stop = entry - risk
		p.TP1 = entry + risk
		p.TP2 = entry + 2*risk
	} else {
		p.Stop = entry + risk
		p.TP1 = entry - risk
		p.TP2 = entry - 2*risk
	}
	p.RiskPct = pctFrom(p.Stop, entry)
	p.TP1Pct = pctFrom(p.TP1, entry)
	p.TP2Pct = pctFrom(p.TP2, entry)
	p.EntryRule = entryRule(kind, side, entry, conditional)
	return p, true
}

func pctFrom(level, entry float64) float64 {
	return math.Abs(level-entry) / entry * 100
}

func entryRule(kind models.Kind, side models.Side, entry float64, conditional bool) string {
	if !conditional {
		return fmt.Sprintf("enter at market ~%.6g", entry)
	}
	switch {
	case kind == models.KindRSIExtreme && side.IsLong():
		return fmt.Sprintf("wait for confirmation: enter only if price breaks above %.6g", entry)
	case kind == models.KindRSIExtreme:
		return fmt.Sprintf("wait for confirmation: enter only if price breaks below %.6g", entry)
	case side.IsLong():
		return fmt.Sprintf("buy stop: enter only if price trades above %.6g", entry)
	default:
		return fmt.Sprintf("sell stop: enter only if price trades below %.6g", entry)
	}
}
