package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"

	"signal_bot/internal/cooldown"
	"signal_bot/internal/exchange"
	"signal_bot/internal/models"
	"signal_bot/internal/notify"
	"signal_bot/internal/strategy"
	"signal_bot/pkg/tracing"
)

const (
	configFilePathENV = "CONFIG_FILE"
	tokenTelegramENV  = "TELEGRAM_TOKEN"
	databaseDSN       = "DATABASE_DSN"
	redisAddrENV      = "REDIS_ADDR"
	kafkaBrokersENV   = "KAFKA_BROKERS"
)

// Config ...
type Config struct {
	Service struct {
		Name        string `yaml:"name" default:"signal_bot"`
		LogLevel    string `yaml:"log_level" default:"info" validate:"oneof=debug info warn error"`
		Development bool   `yaml:"development"`
		// печатать таблицу предложений в stdout
		Console     bool   `yaml:"console"`
	} `yaml:"service"`

	Scanner   ScannerConfig   `yaml:"scanner"`
	Strategy  strategy.Config `yaml:"strategy"`
	Markets   MarketsConfig   `yaml:"markets"`
	Exchanges exchange.Config `yaml:"exchanges"`

	Telegram notify.TelegramConfig `yaml:"telegram"`
	Kafka    notify.KafkaConfig    `yaml:"kafka"`
	Redis    RedisConfig           `yaml:"redis"`
	DB       string                `yaml:"db_dsn"`

	Tracing tracing.Config `yaml:"tracing"`
	Health  struct {
		Addr string `yaml:"addr" default:":8080"`
	} `yaml:"health"`
}

type ScannerConfig struct {
	Interval       time.Duration `yaml:"interval" default:"5m" validate:"gt=0"`
	Instruments    []string      `yaml:"instruments" default:"[\"BTCUSDT\",\"ETHUSDT\",\"SOLUSDT\"]" validate:"min=1,dive,required"`
	CandleInterval string        `yaml:"candle_interval" default:"15m" validate:"required"`
	CandleLimit    int           `yaml:"candle_limit" default:"200" validate:"gte=2"`
	// параллельных инструментов за цикл; держит нас под rate limit бирж
	Concurrency     int     `yaml:"concurrency" default:"8" validate:"gte=1"`
	PreferredSource string  `yaml:"preferred_source" default:"binance" validate:"oneof=binance okx"`
	TieEpsilon      float64 `yaml:"tie_epsilon" default:"0.01" validate:"gte=0"`
	CrossMarketPick bool    `yaml:"cross_market_pick" default:"true"`
}

type MarketConfig struct {
	Enabled         bool `yaml:"enabled" default:"true"`
	CooldownMinutes int  `yaml:"cooldown_minutes" default:"60" validate:"gte=0"`
	// 0 = без лимита
	MaxProposals int  `yaml:"max_proposals" default:"5" validate:"gte=0"`
	AllowShort   bool `yaml:"allow_short"`
	ShortWatch   bool `yaml:"short_watch" default:"true"`
}

type MarketsConfig struct {
	Spot    MarketConfig `yaml:"spot"`
	Futures MarketConfig `yaml:"futures"`
}

// SetDefaults: на фьючерсах шорт разрешён по умолчанию.
func (m *MarketsConfig) SetDefaults() {
	if defaults.CanUpdate(m.Futures.AllowShort) {
		m.Futures.AllowShort = true
	}
}

// ByMarket: только включённые рынки.
func (m MarketsConfig) ByMarket() map[models.Market]MarketConfig {
	out := make(map[models.Market]MarketConfig, 2)
	if m.Spot.Enabled {
		out[models.MarketSpot] = m.Spot
	}
	if m.Futures.Enabled {
		out[models.MarketFutures] = m.Futures
	}
	return out
}

func (m MarketsConfig) Rules() map[models.Market]strategy.MarketRules {
	return map[models.Market]strategy.MarketRules{
		models.MarketSpot:    {AllowShort: m.Spot.AllowShort, ShortWatch: m.Spot.ShortWatch},
		models.MarketFutures: {AllowShort: m.Futures.AllowShort, ShortWatch: m.Futures.ShortWatch},
	}
}

type RedisConfig struct {
	// выключен: кулдаун живёт в памяти процесса
	Enabled              bool `yaml:"enabled"`
	cooldown.RedisConfig `yaml:",inline"`
}

// NewConfig: явный путь (флаг --config) важнее CONFIG_FILE.
func NewConfig(path string) (*Config, error) {
	if path != "" {
		return Load(path)
	}
	configFileName := os.Getenv(configFilePathENV)
	if configFileName == "" {
		configFileName = "values_local.yaml"
	}
	return Load("configs/" + configFileName)
}

// Load: дефолты -> .env -> yaml -> переменные окружения -> валидация.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	config := Config{}
	if err := defaults.Set(&config); err != nil {
		return nil, fmt.Errorf("config defaults: %w", err)
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config file: %w", err)
	}
	defer func() {
		_ = file.Close()
	}()

	if err := yaml.NewDecoder(file).Decode(&config); err != nil {
		return nil, fmt.Errorf("decode config file %s: %w", path, err)
	}

	config.applyEnv()

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func (c *Config) applyEnv() {
	if token := os.Getenv(tokenTelegramENV); token != "" {
		c.Telegram.Token = token
	}
	if dsn := os.Getenv(databaseDSN); dsn != "" {
		c.DB = dsn
	}
	if addr := os.Getenv(redisAddrENV); addr != "" {
		c.Redis.Addr = addr
		c.Redis.Enabled = true
	}
	if brokers := os.Getenv(kafkaBrokersENV); brokers != "" {
		c.Kafka.Brokers = splitList(brokers)
		c.Kafka.Enabled = true
	}
	c.Scanner.Interval = durationFromEnv("SCAN_INTERVAL", c.Scanner.Interval)
	c.Scanner.Concurrency = intFromEnv("SCAN_CONCURRENCY", c.Scanner.Concurrency)
	c.Service.LogLevel = getenvDefault("LOG_LEVEL", c.Service.LogLevel)
	c.Service.Development = boolFromEnv("LOG_DEVELOPMENT", c.Service.Development)
	c.Tracing.Enabled = boolFromEnv("TRACING_ENABLED", c.Tracing.Enabled)
}

var validate = validator.New()

func (c *Config) Validate() error {
	if err := validate.StructCtx(context.Background(), c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.Strategy.EMAFast >= c.Strategy.EMASlow {
		return fmt.Errorf("invalid config: strategy.ema_fast (%d) must be less than ema_slow (%d)",
			c.Strategy.EMAFast, c.Strategy.EMASlow)
	}
	if len(c.Markets.ByMarket()) == 0 {
		return fmt.Errorf("invalid config: no markets enabled")
	}
	if !c.Exchanges.Binance.Enabled && !c.Exchanges.OKX.Enabled {
		return fmt.Errorf("invalid config: no exchanges enabled")
	}
	if c.Redis.Enabled && c.Redis.Addr == "" {
		return fmt.Errorf("invalid config: redis.addr is required when redis is enabled")
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("invalid config: kafka.brokers is required when kafka is enabled")
	}
	return nil
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func intFromEnv(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func boolFromEnv(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if v == "1" || v == "true" || v == "TRUE" {
			return true
		}
		if v == "0" || v == "false" || v == "FALSE" {
			return false
		}
	}
	return def
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func durationFromEnv(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
