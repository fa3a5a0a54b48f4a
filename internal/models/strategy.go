package models

import (
	"strings"
	"time"
)

type Market string

const (
	MarketSpot    Market = "spot"
	MarketFutures Market = "futures"
)

// Kind: какое правило сработало.
type Kind string

const (
	KindBreakout   Kind = "BREAKOUT"
	KindEMACross   Kind = "EMA_CROSS"
	KindRSIExtreme Kind = "RSI_EXTREME"
)

// Side задаёт знак плана: LONG-класс или SHORT-класс.
// WATCH_*: не вход, а "ждём подтверждения".
type Side string

const (
	SideLong       Side = "LONG"
	SideShort      Side = "SHORT"
	SideWatchLong  Side = "WATCH_LONG"
	SideWatchShort Side = "WATCH_SHORT"
)

func (s Side) IsLong() bool  { return s == SideLong || s == SideWatchLong }
func (s Side) IsShort() bool { return s == SideShort || s == SideWatchShort }
func (s Side) IsWatch() bool { return strings.HasPrefix(string(s), "WATCH_") }

// Candidate: сырой сигнал по одной тройке (инструмент, рынок, биржа).
// Опциональные поля nil, если индикатор недоступен.
type Candidate struct {
	Instrument     string   `json:"instrument"`
	Market         Market   `json:"market"`
	Source         string   `json:"source"`
	Kind           Kind     `json:"kind"`
	Side           Side     `json:"side"`
	Price          float64  `json:"price"`
	RSI            *float64 `json:"rsi,omitempty"`
	VolumeMultiple *float64 `json:"volume_multiple,omitempty"`
	Funding        *float64 `json:"funding,omitempty"`
	Rationale      string   `json:"rationale"`
}

// Plan: уровни входа/стопа/тейков.
// LONG-класс: Stop < Entry < TP1 < TP2, SHORT-класс: наоборот.
type Plan struct {
	Entry       float64 `json:"entry"`
	Stop        float64 `json:"stop"`
	TP1         float64 `json:"tp1"`
	TP2         float64 `json:"tp2"`
	Risk        float64 `json:"risk"`
	RiskPct     float64 `json:"risk_pct"`
	TP1Pct      float64 `json:"tp1_pct"`
	TP2Pct      float64 `json:"tp2_pct"`
	Conditional bool    `json:"conditional"`
	EntryRule   string  `json:"entry_rule"`
}

// Proposal: кандидат + скор + план. Живёт один цикл.
type Proposal struct {
	ID string `json:"id,omitempty"`
	Candidate
	Score     float64   `json:"score"`
	Plan      Plan      `json:"plan"`
	CreatedAt time.Time `json:"created_at"`
}

func (p Proposal) Key() CooldownKey {
	return CooldownKey{
		Instrument: p.Instrument,
		Market:     p.Market,
		Kind:       p.Kind,
		Side:       p.Side,
	}
}

type CooldownKey struct {
	Instrument string
	Market     Market
	Kind       Kind
	Side       Side
}

func (k CooldownKey) String() string {
	return k.Instrument + ":" + string(k.Market) + ":" + string(k.Kind) + ":" + string(k.Side)
}

// InstrumentFailure: почему инструмент выпал из цикла.
type InstrumentFailure struct {
	Instrument string `json:"instrument"`
	Reason     string `json:"reason"`
}

// CycleReport: итог одного прохода по watchlist.
type CycleReport struct {
	StartedAt   time.Time             `json:"started_at"`
	Duration    time.Duration         `json:"duration"`
	Markets     []Market              `json:"markets"`
	Proposals   map[Market][]Proposal `json:"proposals"`
	Instruments int                   `json:"instruments"`
	Errors      int                   `json:"errors"`
	Suppressed  int                   `json:"suppressed"`
	Failures    []InstrumentFailure   `json:"failures,omitempty"`
}

// Total: сколько предложений прошло во всех рынках.
func (r CycleReport) Total() int {
	n := 0
	for _, ps := range r.Proposals {
		n += len(ps)
	}
	return n
}
