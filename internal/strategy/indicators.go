package strategy

import "math"

// Все индикаторы чистые. ok=false: данных мало, это не ошибка.
// Порядок суммирования фиксирован: результат должен совпадать бит-в-бит.

// EMA: затравка: первое значение ряда (не SMA), дальше сглаживание
// с k = 2/(period+1) по всему ряду. Смещение затравки намеренное,
// на него завязаны кроссы и скоринг, поэтому окна берём широкие.
func EMA(series []float64, period int) (float64, bool) {
	if period <= 0 || len(series) < period {
		return 0, false
	}
	k := 2.0 / float64(period+1)
	ema := series[0]
	for _, v := range series[1:] {
		ema = v*k + ema*(1-k)
	}
	return ema, true
}

// RSI по последним period изменениям: средний рост / среднее падение.
func RSI(closes []float64, period int) (float64, bool) {
	if period <= 0 || len(closes) < period+1 {
		return 0, false
	}
	var gains, losses float64
	for i := len(closes) - period; i < len(closes); i++ {
		d := closes[i] - closes[i-1]
		if d > 0 {
			gains += d
		} else {
			losses += -d
		}
	}
	avgGain := gains / float64(period)
	avgLoss := losses / float64(period)
	if avgLoss == 0 {
		return 100.0, true
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs), true
}

// ATR: простое среднее последних period true range (без сглаживания Уайлдера).
func ATR(highs, lows, closes []float64, period int) (float64, bool) {
	n := len(closes)
	if len(highs) < n {
		n = len(highs)
	}
	if len(lows) < n {
		n = len(lows)
	}
	if period <= 0 || n < period+2 {
		return 0, false
	}
	trs := make([]float64, 0, n-1)
	for i := 1; i < n; i++ {
		prev := closes[i-1]
		tr := math.Max(highs[i]-lows[i], math.Max(math.Abs(highs[i]-prev), math.Abs(lows[i]-prev)))
		trs = append(trs, tr)
	}
	sum := 0.0
	for _, tr := range trs[len(trs)-period:] {
		sum += tr
	}
	return sum / float64(period), true
}

// SwingHigh: максимум последних lookback значений (или всех, если ряд короче).
func SwingHigh(highs []float64, lookback int) (float64, bool) {
	w := tail(highs, lookback)
	if len(w) == 0 {
		return 0, false
	}
	m := w[0]
	for _, v := range w[1:] {
		if v > m {
			m = v
		}
	}
	return m, true
}

// SwingLow: минимум последних lookback значений.
func SwingLow(lows []float64, lookback int) (float64, bool) {
	w := tail(lows, lookback)
	if len(w) == 0 {
		return 0, false
	}
	m := w[0]
	for _, v := range w[1:] {
		if v < m {
			m = v
		}
	}
	return m, true
}

// VolumeMultiple: объём последней свечи к среднему объёму lookback свечей до неё.
func VolumeMultiple(volumes []float64, lookback int) (float64, bool) {
	if lookback <= 0 || len(volumes) < 2 {
		return 0, false
	}
	prev := tail(volumes[:len(volumes)-1], lookback)
	sum := 0.0
	for _, v := range prev {
		sum += v
	}
	avg := sum / float64(len(prev))
	if avg <= 0 {
		return 0, false
	}
	return volumes[len(volumes)-1] / avg, true
}

func tail(xs []float64, n int) []float64 {
	if n <= 0 {
		return nil
	}
	if n > len(xs) {
		n = len(xs)
	}
	return xs[len(xs)-n:]
}
