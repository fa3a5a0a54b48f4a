package exchange

import (
	"context"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"

	"signal_bot/internal/models"
)

const (
	binanceMaxLimit = 1000
)

type Binance struct {
	spot    *resty.Client
	futures *resty.Client
	now     func() time.Time
}

func NewBinance(cfg Config) *Binance {
	return &Binance{
		spot:    newRESTClient(cfg.Binance.SpotURL, cfg),
		futures: newRESTClient(cfg.Binance.FuturesURL, cfg),
		now:     time.Now,
	}
}

func (b *Binance) Name() string { return "binance" }

func (b *Binance) Supports(market models.Market) bool {
	return market == models.MarketSpot || market == models.MarketFutures
}

func (b *Binance) Candles(ctx context.Context, instrument string, market models.Market, interval string, limit int) ([]models.Candle, error) {
	iv, err := binanceInterval(interval)
	if err != nil {
		return nil, err
	}
	if limit <= 0 || limit > binanceMaxLimit {
		limit = binanceMaxLimit
	}

	client, path := b.spot, "/api/v3/klines"
	switch market {
	case models.MarketSpot:
	case models.MarketFutures:
		client, path = b.futures, "/fapi/v1/klines"
	default:
		return nil, errors.Wrapf(ErrUnsupportedMarket, "binance %s", market)
	}

	// +1: последняя строка обычно незакрытая и будет отброшена
	var rows [][]any
	err = getJSON(ctx, client, b.Name(), path, map[string]string{
		"symbol":   binanceSymbol(instrument),
		"interval": iv,
		"limit":    strconv.Itoa(min(limit+1, binanceMaxLimit)),
	}, &rows)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, errors.Wrapf(ErrEmptyResponse, "binance klines %s %s", instrument, market)
	}

	candles := parseBinanceKlines(rows, b.now())
	if len(candles) > limit {
		candles = candles[len(candles)-limit:]
	}
	return candles, nil
}

type binancePremiumIndex struct {
	Symbol          string `json:"symbol"`
	LastFundingRate string `json:"lastFundingRate"`
}

func (b *Binance) FundingRate(ctx context.Context, instrument string) (float64, error) {
	var resp binancePremiumIndex
	err := getJSON(ctx, b.futures, b.Name(), "/fapi/v1/premiumIndex", map[string]string{
		"symbol": binanceSymbol(instrument),
	}, &resp)
	if err != nil {
		return 0, err
	}
	if resp.LastFundingRate == "" {
		return 0, errors.Wrapf(ErrEmptyResponse, "binance funding %s", instrument)
	}
	rate, err := strconv.ParseFloat(resp.LastFundingRate, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "binance funding %s: parse %q", instrument, resp.LastFundingRate)
	}
	return rate, nil
}
