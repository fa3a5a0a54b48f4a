package strategy

import (
	"math"

	"signal_bot/internal/models"
)

// Scorer: ключ ранжирования, не вероятность. Больше = увереннее.
type Scorer struct {
	cfg ScoreConfig
}

func NewScorer(cfg ScoreConfig) *Scorer {
	return &Scorer{cfg: cfg}
}

// Score = base(kind) + min(vol, cap)*w + osc - watch - funding.
func (s *Scorer) Score(c models.Candidate) float64 {
	score := s.base(c.Kind)
	if c.VolumeMultiple != nil {
		score += math.Min(*c.VolumeMultiple, s.cfg.VolumeCap) * s.cfg.VolumeWeight
	}
	if c.RSI != nil {
		score += math.Min(math.Abs(*c.RSI-50)*s.cfg.OscillatorWeight, s.cfg.OscillatorCap)
	}
	if c.Side.IsWatch() {
		score -= s.cfg.WatchPenalty
	}
	if c.Market == models.MarketFutures && c.Funding != nil {
		score -= math.Min(math.Abs(*c.Funding)*s.cfg.FundingWeight, s.cfg.FundingCap)
	}
	return score
}

func (s *Scorer) base(k models.Kind) float64 {
	switch k {
	case models.KindBreakout:
		return s.cfg.BaseBreakout
	case models.KindEMACross:
		return s.cfg.BaseEMACross
	case models.KindRSIExtreme:
		return s.cfg.BaseRSIExtreme
	}
	return 0
}
