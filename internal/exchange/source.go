package exchange

import (
	"context"
	"time"

	"github.com/bytedance/sonic"
	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"

	"signal_bot/internal/models"
)

var (
	ErrUnsupportedMarket = errors.New("market not supported by source")
	ErrEmptyResponse     = errors.New("empty response")
)

// Source: поставщик рыночных данных одной биржи.
type Source interface {
	Name() string
	Supports(market models.Market) bool
	// Candles: от старых к новым, только закрытые свечи.
	Candles(ctx context.Context, instrument string, market models.Market, interval string, limit int) ([]models.Candle, error)
	// FundingRate: текущая ставка бессрочного контракта.
	FundingRate(ctx context.Context, instrument string) (float64, error)
}

type Config struct {
	Timeout    time.Duration `yaml:"timeout" default:"10s"`
	RetryCount int           `yaml:"retry_count" default:"2" validate:"gte=0"`
	RetryWait  time.Duration `yaml:"retry_wait" default:"500ms"`

	Binance BinanceConfig `yaml:"binance"`
	OKX     OKXConfig     `yaml:"okx"`
}

type BinanceConfig struct {
	Enabled    bool   `yaml:"enabled" default:"true"`
	SpotURL    string `yaml:"spot_url" default:"https://api.binance.com"`
	FuturesURL string `yaml:"futures_url" default:"https://fapi.binance.com"`
}

type OKXConfig struct {
	Enabled bool   `yaml:"enabled" default:"true"`
	BaseURL string `yaml:"base_url" default:"https://www.okx.com"`
	WSURL   string `yaml:"ws_url" default:"wss://ws.okx.com:8443/ws/v5/public"`
	// подписка на funding-rate по websocket, REST остаётся запасным путём
	StreamFunding bool          `yaml:"stream_funding" default:"true"`
	FundingMaxAge time.Duration `yaml:"funding_max_age" default:"10m"`
}

func newRESTClient(baseURL string, cfg Config) *resty.Client {
	return resty.New().
		SetBaseURL(baseURL).
		SetTimeout(cfg.Timeout).
		SetRetryCount(cfg.RetryCount).
		SetRetryWaitTime(cfg.RetryWait).
		SetJSONMarshaler(sonic.Marshal).
		SetJSONUnmarshaler(sonic.Unmarshal).
		SetHeader("Accept", "application/json").
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil {
				return true
			}
			return r.StatusCode() == 429 || r.StatusCode() >= 500
		})
}

// getJSON делает GET и раскладывает тело в out.
func getJSON(ctx context.Context, c *resty.Client, source, path string, query map[string]string, out any) error {
	resp, err := c.R().
		SetContext(ctx).
		SetQueryParams(query).
		Get(path)
	if err != nil {
		return errors.Wrapf(err, "%s GET %s", source, path)
	}
	if resp.IsError() {
		return errors.Errorf("%s GET %s: http %d: %s", source, path, resp.StatusCode(), truncate(resp.String(), 256))
	}
	body := resp.Body()
	if len(body) == 0 {
		return errors.Wrapf(ErrEmptyResponse, "%s GET %s", source, path)
	}
	if err := sonic.Unmarshal(body, out); err != nil {
		return errors.Wrapf(err, "%s GET %s: decode", source, path)
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
