package exchange

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"signal_bot/internal/models"
)

// parseBinanceKlines: [openTime, o, h, l, c, v, closeTime, ...].
// Незакрытая свеча (closeTime в будущем) и битые строки отбрасываются.
func parseBinanceKlines(rows [][]any, now time.Time) []models.Candle {
	out := make([]models.Candle, 0, len(rows))
	for _, row := range rows {
		if len(row) < 7 {
			continue
		}
		openMs, ok1 := toInt64(row[0])
		closeMs, ok2 := toInt64(row[6])
		if !ok1 || !ok2 {
			continue
		}
		if time.UnixMilli(closeMs).After(now) {
			continue
		}
		c, ok := buildCandle(openMs, row[1], row[2], row[3], row[4], row[5])
		if !ok {
			continue
		}
		out = append(out, c)
	}
	return out
}

// parseOKXCandles: [ts, o, h, l, c, vol, volCcy, volCcyQuote, confirm], newest-first.
// Разворачиваем в хронологический порядок; confirm != "1": свеча ещё идёт.
func parseOKXCandles(rows [][]string) []models.Candle {
	out := make([]models.Candle, 0, len(rows))
	for i := len(rows) - 1; i >= 0; i-- {
		row := rows[i]
		if len(row) < 6 {
			continue
		}
		if len(row) >= 9 && row[8] != "1" {
			continue
		}
		tsMs, err := strconv.ParseInt(row[0], 10, 64)
		if err != nil {
			continue
		}
		c, ok := buildCandle(tsMs, row[1], row[2], row[3], row[4], row[5])
		if !ok {
			continue
		}
		out = append(out, c)
	}
	return out
}

func buildCandle(openMs int64, o, h, l, c, v any) (models.Candle, bool) {
	open, ok1 := toFloat(o)
	high, ok2 := toFloat(h)
	low, ok3 := toFloat(l)
	closep, ok4 := toFloat(c)
	vol, ok5 := toFloat(v)
	if !ok1 || !ok2 || !ok3 || !ok4 || !ok5 {
		return models.Candle{}, false
	}
	candle := models.Candle{
		OpenTime: time.UnixMilli(openMs).UTC(),
		Open:     open,
		High:     high,
		Low:      low,
		Close:    closep,
		Volume:   vol,
	}
	if !candle.Valid() {
		return models.Candle{}, false
	}
	return candle, true
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case string:
		f, err := strconv.ParseFloat(x, 64)
		return f, err == nil
	case float64:
		return x, true
	case int64:
		return float64(x), true
	case int:
		return float64(x), true
	}
	return 0, false
}

func toInt64(v any) (int64, bool) {
	switch x := v.(type) {
	case float64:
		return int64(x), true
	case int64:
		return x, true
	case int:
		return int64(x), true
	case string:
		n, err := strconv.ParseInt(x, 10, 64)
		return n, err == nil
	}
	return 0, false
}

var quoteAssets = []string{"USDT", "USDC", "FDUSD", "BUSD", "USD", "BTC", "ETH"}

// okxInstID: BTCUSDT -> BTC-USDT (spot) / BTC-USDT-SWAP (futures).
func okxInstID(instrument string, market models.Market) (string, error) {
	inst := strings.ToUpper(strings.TrimSpace(instrument))
	if !strings.Contains(inst, "-") {
		split := false
		for _, q := range quoteAssets {
			if strings.HasSuffix(inst, q) && len(inst) > len(q) {
				inst = strings.TrimSuffix(inst, q) + "-" + q
				split = true
				break
			}
		}
		if !split {
			return "", fmt.Errorf("okx: cannot split %q into base/quote", instrument)
		}
	}
	inst = strings.TrimSuffix(inst, "-SWAP")
	if market == models.MarketFutures {
		return inst + "-SWAP", nil
	}
	return inst, nil
}

// binanceSymbol: BTC-USDT / BTC-USDT-SWAP -> BTCUSDT.
func binanceSymbol(instrument string) string {
	s := strings.ToUpper(strings.TrimSpace(instrument))
	s = strings.TrimSuffix(s, "-SWAP")
	return strings.ReplaceAll(s, "-", "")
}

func binanceInterval(tf string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(tf)) {
	case "1m", "3m", "5m", "15m", "30m":
		return strings.ToLower(tf), nil
	case "60m", "1h":
		return "1h", nil
	case "2h", "4h", "6h", "8h", "12h":
		return strings.ToLower(tf), nil
	case "1d":
		return "1d", nil
	case "1w":
		return "1w", nil
	}
	return "", fmt.Errorf("unsupported timeframe for Binance: %q", tf)
}

func okxBar(tf string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(tf)) {
	case "1m", "3m", "5m", "15m", "30m":
		return strings.ToLower(tf), nil
	case "60m", "1h":
		return "1H", nil
	case "2h":
		return "2H", nil
	case "4h":
		return "4H", nil
	case "6h":
		return "6H", nil
	case "12h":
		return "12H", nil
	case "1d":
		return "1D", nil
	case "1w":
		return "1W", nil
	}
	return "", fmt.Errorf("unsupported timeframe for OKX bar: %q", tf)
}
