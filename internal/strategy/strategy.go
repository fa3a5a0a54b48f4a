package strategy

import "signal_bot/internal/models"

// Config: параметры детектора, плана и скоринга.
// Дефолты проставляет creasty/defaults, см. modules/config.
type Config struct {
	EMAFast int `yaml:"ema_fast" default:"9" validate:"gte=2"`
	EMASlow int `yaml:"ema_slow" default:"21" validate:"gte=3"`

	RSIPeriod int     `yaml:"rsi_period" default:"14" validate:"gte=2"`
	RSILow    float64 `yaml:"rsi_low" default:"25" validate:"gt=0,lt=50"`
	RSIHigh   float64 `yaml:"rsi_high" default:"75" validate:"gt=50,lt=100"`

	ATRPeriod     int     `yaml:"atr_period" default:"14" validate:"gte=1"`
	ATRMultiplier float64 `yaml:"atr_multiplier" default:"1.2" validate:"gt=0"`
	// риск в % от цены, когда ATR посчитать нельзя
	FallbackRiskPct float64 `yaml:"fallback_risk_pct" default:"0.4" validate:"gt=0"`

	BreakoutLookback int `yaml:"breakout_lookback" default:"20" validate:"gte=2"`
	// буфер над/под уровнем пробоя, в %
	TriggerBufferPct float64 `yaml:"trigger_buffer_pct" default:"0.05" validate:"gte=0"`
	// окно свинга для подтверждения RSI-экстремума
	ConfirmLookback int `yaml:"confirm_lookback" default:"3" validate:"gte=1"`

	VolumeLookback int `yaml:"volume_lookback" default:"20" validate:"gte=1"`
	MinCandles     int `yaml:"min_candles" default:"40" validate:"gte=2"`

	Score ScoreConfig `yaml:"score"`
}

type ScoreConfig struct {
	BaseBreakout   float64 `yaml:"base_breakout" default:"3.0"`
	BaseEMACross   float64 `yaml:"base_ema_cross" default:"2.0"`
	BaseRSIExtreme float64 `yaml:"base_rsi_extreme" default:"1.0"`

	VolumeCap    float64 `yaml:"volume_cap" default:"3.0" validate:"gt=0"`
	VolumeWeight float64 `yaml:"volume_weight" default:"0.5" validate:"gte=0"`

	// за каждый пункт RSI от 50, с потолком
	OscillatorWeight float64 `yaml:"oscillator_weight" default:"0.04" validate:"gte=0"`
	OscillatorCap    float64 `yaml:"oscillator_cap" default:"1.0" validate:"gte=0"`

	WatchPenalty float64 `yaml:"watch_penalty" default:"1.5" validate:"gte=0"`

	// |funding| * weight, с потолком; только futures
	FundingWeight float64 `yaml:"funding_weight" default:"1000" validate:"gte=0"`
	FundingCap    float64 `yaml:"funding_cap" default:"1.5" validate:"gte=0"`
}

// MarketRules: какие стороны разрешены на рынке.
type MarketRules struct {
	// SHORT-входы: медвежий кросс EMA и пробой вниз
	AllowShort bool `yaml:"allow_short"`
	// WATCH_SHORT на пробое вниз там, где шорт запрещён.
	// Перекупленность RSI даёт WATCH_SHORT всегда.
	ShortWatch bool `yaml:"short_watch"`
}

// DefaultRules: на споте шорта нет, на фьючерсах есть.
func DefaultRules() map[models.Market]MarketRules {
	return map[models.Market]MarketRules{
		models.MarketSpot:    {AllowShort: false, ShortWatch: true},
		models.MarketFutures: {AllowShort: true, ShortWatch: true},
	}
}

// DefaultConfig повторяет default-теги; удобно в тестах.
func DefaultConfig() Config {
	return Config{
		EMAFast:          9,
		EMASlow:          21,
		RSIPeriod:        14,
		RSILow:           25,
		RSIHigh:          75,
		ATRPeriod:        14,
		ATRMultiplier:    1.2,
		FallbackRiskPct:  0.4,
		BreakoutLookback: 20,
		TriggerBufferPct: 0.05,
		ConfirmLookback:  3,
		VolumeLookback:   20,
		MinCandles:       40,
		Score: ScoreConfig{
			BaseBreakout:     3.0,
			BaseEMACross:     2.0,
			BaseRSIExtreme:   1.0,
			VolumeCap:        3.0,
			VolumeWeight:     0.5,
			OscillatorWeight: 0.04,
			OscillatorCap:    1.0,
			WatchPenalty:     1.5,
			FundingWeight:    1000,
			FundingCap:       1.5,
		},
	}
}
