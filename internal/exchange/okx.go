package exchange

import (
	"context"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"

	"signal_bot/internal/models"
)

const okxMaxLimit = 300

type OKX struct {
	rest    *resty.Client
	funding *FundingStream // может быть nil
	maxAge  time.Duration
}

func NewOKX(cfg Config, funding *FundingStream) *OKX {
	return &OKX{
		rest:    newRESTClient(cfg.OKX.BaseURL, cfg),
		funding: funding,
		maxAge:  cfg.OKX.FundingMaxAge,
	}
}

func (o *OKX) Name() string { return "okx" }

func (o *OKX) Supports(market models.Market) bool {
	return market == models.MarketSpot || market == models.MarketFutures
}

type okxResponse[T any] struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
	Data []T    `json:"data"`
}

func (r okxResponse[T]) err(what string) error {
	if r.Code != "0" {
		return errors.Errorf("okx %s: code=%s msg=%s", what, r.Code, r.Msg)
	}
	return nil
}

func (o *OKX) Candles(ctx context.Context, instrument string, market models.Market, interval string, limit int) ([]models.Candle, error) {
	if !o.Supports(market) {
		return nil, errors.Wrapf(ErrUnsupportedMarket, "okx %s", market)
	}
	instID, err := okxInstID(instrument, market)
	if err != nil {
		return nil, err
	}
	bar, err := okxBar(interval)
	if err != nil {
		return nil, err
	}
	if limit <= 0 || limit > okxMaxLimit {
		limit = okxMaxLimit
	}

	var resp okxResponse[[]string]
	err = getJSON(ctx, o.rest, o.Name(), "/api/v5/market/candles", map[string]string{
		"instId": instID,
		"bar":    bar,
		"limit":  strconv.Itoa(limit),
	}, &resp)
	if err != nil {
		return nil, err
	}
	if err := resp.err("candles " + instID); err != nil {
		return nil, err
	}
	if len(resp.Data) == 0 {
		return nil, errors.Wrapf(ErrEmptyResponse, "okx candles %s", instID)
	}
	return parseOKXCandles(resp.Data), nil
}

type okxFundingRate struct {
	InstID      string `json:"instId"`
	FundingRate string `json:"fundingRate"`
}

// FundingRate: сначала кэш websocket, потом REST.
func (o *OKX) FundingRate(ctx context.Context, instrument string) (float64, error) {
	instID, err := okxInstID(instrument, models.MarketFutures)
	if err != nil {
		return 0, err
	}
	if o.funding != nil {
		if rate, ok := o.funding.Rate(instID, o.maxAge); ok {
			return rate, nil
		}
	}

	var resp okxResponse[okxFundingRate]
	err = getJSON(ctx, o.rest, o.Name(), "/api/v5/public/funding-rate", map[string]string{
		"instId": instID,
	}, &resp)
	if err != nil {
		return 0, err
	}
	if err := resp.err("funding " + instID); err != nil {
		return 0, err
	}
	if len(resp.Data) == 0 || resp.Data[0].FundingRate == "" {
		return 0, errors.Wrapf(ErrEmptyResponse, "okx funding %s", instID)
	}
	rate, err := strconv.ParseFloat(resp.Data[0].FundingRate, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "okx funding %s: parse %q", instID, resp.Data[0].FundingRate)
	}
	return rate, nil
}
