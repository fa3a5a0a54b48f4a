package strategy

import "testing"

func TestIndicatorsUnavailableOnShortSeries(t *testing.T) {
	short := []float64{1, 2, 3}

	if _, ok := EMA(short, 4); ok {
		t.Errorf("EMA: expected unavailable for len=%d period=4", len(short))
	}
	if _, ok := EMA(nil, 1); ok {
		t.Errorf("EMA: expected unavailable for empty series")
	}
	if _, ok := RSI(short, 3); ok {
		t.Errorf("RSI: expected unavailable for len=%d period=3", len(short))
	}
	if _, ok := ATR(short, short, short, 2); ok {
		t.Errorf("ATR: expected unavailable for len=%d period=2", len(short))
	}
	if _, ok := SwingHigh(nil, 5); ok {
		t.Errorf("SwingHigh: expected unavailable for empty series")
	}
	if _, ok := SwingLow(short, 0); ok {
		t.Errorf("SwingLow: expected unavailable for zero lookback")
	}
	if _, ok := VolumeMultiple([]float64{10}, 5); ok {
		t.Errorf("VolumeMultiple: expected unavailable for single volume")
	}
	if _, ok := VolumeMultiple([]float64{0, 0, 5}, 5); ok {
		t.Errorf("VolumeMultiple: expected unavailable for zero average")
	}
}

func TestEMAFirstValueSeed(t *testing.T) {
	tests := []struct {
		name   string
		series []float64
		period int
		want   float64
	}{
		{"ramp", []float64{1, 2, 3}, 3, 2.25},
		// с затравкой SMA было бы 10/3, здесь первое значение весит больше
		{"seed bias", []float64{10, 0, 0}, 3, 2.5},
		{"single", []float64{42}, 1, 42},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := EMA(tt.series, tt.period)
			if !ok {
				t.Fatalf("EMA unavailable")
			}
			if got != tt.want {
				t.Fatalf("EMA = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRSI(t *testing.T) {
	rising := make([]float64, 20)
	for i := range rising {
		rising[i] = float64(100 + i)
	}
	got, ok := RSI(rising, 14)
	if !ok || got != 100 {
		t.Fatalf("RSI(rising) = %v, %v; want 100", got, ok)
	}

	// последние 14 изменений: +2, восемь по -1, пять нулей => RS = 2/8
	closes := make([]float64, 46)
	for i := range closes {
		closes[i] = 100
	}
	for _, d := range []float64{-1, -1, 0, -1, -1, 0, -1, 2, -1, 0, -1, -1, 0, 0} {
		closes = append(closes, closes[len(closes)-1]+d)
	}
	got, ok = RSI(closes, 14)
	if !ok {
		t.Fatalf("RSI unavailable")
	}
	if got != 20 {
		t.Fatalf("RSI = %v, want 20", got)
	}
}

func TestATRConstantRange(t *testing.T) {
	n := 30
	closes := make([]float64, n)
	highs := make([]float64, n)
	lows := make([]float64, n)
	for i := range closes {
		closes[i] = 100
		highs[i] = 101
		lows[i] = 99
	}
	got, ok := ATR(highs, lows, closes, 14)
	if !ok || got != 2 {
		t.Fatalf("ATR = %v, %v; want 2", got, ok)
	}

	// минимум period+2 точек
	if _, ok := ATR(highs[:15], lows[:15], closes[:15], 14); ok {
		t.Fatalf("ATR: expected unavailable for len=15 period=14")
	}
	if _, ok := ATR(highs[:16], lows[:16], closes[:16], 14); !ok {
		t.Fatalf("ATR: expected available for len=16 period=14")
	}
}

func TestATRUsesPreviousClose(t *testing.T) {
	closes := []float64{10, 10, 10, 20}
	highs := []float64{11, 11, 11, 21}
	lows := []float64{9, 9, 9, 19}
	// последний TR = |21 - 10| = 11, предыдущий = 2
	got, ok := ATR(highs, lows, closes, 2)
	if !ok {
		t.Fatalf("ATR unavailable")
	}
	if got != 6.5 {
		t.Fatalf("ATR = %v, want 6.5", got)
	}
}

func TestSwing(t *testing.T) {
	xs := []float64{3, 1, 4, 1, 5}
	if got, _ := SwingHigh(xs, 3); got != 5 {
		t.Errorf("SwingHigh(3) = %v, want 5", got)
	}
	if got, _ := SwingHigh(xs[:4], 2); got != 4 {
		t.Errorf("SwingHigh(2) on prefix = %v, want 4", got)
	}
	if got, _ := SwingHigh(xs, 100); got != 5 {
		t.Errorf("SwingHigh(100) = %v, want 5", got)
	}
	if got, _ := SwingLow(xs, 2); got != 1 {
		t.Errorf("SwingLow(2) = %v, want 1", got)
	}
	if got, _ := SwingLow(xs[:1], 3); got != 3 {
		t.Errorf("SwingLow on single = %v, want 3", got)
	}
}

func TestVolumeMultiple(t *testing.T) {
	vols := []float64{100, 100, 100, 100, 300}
	got, ok := VolumeMultiple(vols, 20)
	if !ok || got != 3 {
		t.Fatalf("VolumeMultiple = %v, %v; want 3", got, ok)
	}
	// окно 2: среднее двух предыдущих
	vols = []float64{10, 50, 150, 200}
	got, _ = VolumeMultiple(vols, 2)
	if got != 2 {
		t.Fatalf("VolumeMultiple(2) = %v, want 2", got)
	}
}

func TestIndicatorsDeterministic(t *testing.T) {
	closes := emaCrossCloses()
	highs, lows := offsetSeries(closes, 1), offsetSeries(closes, -1)

	for i := 0; i < 5; i++ {
		e1, _ := EMA(closes, 21)
		e2, _ := EMA(closes, 21)
		r1, _ := RSI(closes, 14)
		r2, _ := RSI(closes, 14)
		a1, _ := ATR(highs, lows, closes, 14)
		a2, _ := ATR(highs, lows, closes, 14)
		if e1 != e2 || r1 != r2 || a1 != a2 {
			t.Fatalf("non-deterministic output: ema %v/%v rsi %v/%v atr %v/%v", e1, e2, r1, r2, a1, a2)
		}
	}
}

func offsetSeries(xs []float64, d float64) []float64 {
	out := make([]float64, len(xs))
	for i, v := range xs {
		out[i] = v + d
	}
	return out
}
