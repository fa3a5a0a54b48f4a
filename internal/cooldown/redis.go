package cooldown

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"signal_bot/internal/models"
)

// checkAndMark атомарно: если прошло меньше окна: 0, иначе пишем now с TTL = окно.
var checkAndMark = redis.NewScript(`
local last = redis.call('GET', KEYS[1])
if last and (tonumber(ARGV[1]) - tonumber(last)) < tonumber(ARGV[2]) then
	return 0
end
redis.call('SET', KEYS[1], ARGV[1], 'PX', ARGV[2])
return 1
`)

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix" default:"signal_bot:cooldown"`
}

// Redis: общий ledger для нескольких инстансов бота.
type Redis struct {
	client *redis.Client
	prefix string
}

func NewRedis(ctx context.Context, cfg RedisConfig) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", cfg.Addr, err)
	}
	return NewRedisWithClient(client, cfg.Prefix), nil
}

func NewRedisWithClient(client *redis.Client, prefix string) *Redis {
	return &Redis{client: client, prefix: prefix}
}

// CheckAndMark при ошибке Redis возвращает true вместе с ошибкой:
// лучше повтор сигнала, чем пропуск.
func (r *Redis) CheckAndMark(ctx context.Context, key models.CooldownKey, now time.Time, window time.Duration) (bool, error) {
	if window <= 0 {
		return true, nil
	}
	res, err := checkAndMark.Run(ctx, r.client,
		[]string{r.key(key)},
		now.UnixMilli(), window.Milliseconds(),
	).Int()
	if err != nil {
		return true, fmt.Errorf("cooldown check %s: %w", key, err)
	}
	return res == 1, nil
}

func (r *Redis) key(k models.CooldownKey) string {
	if r.prefix == "" {
		return k.String()
	}
	return r.prefix + ":" + k.String()
}

func (r *Redis) Close() error {
	return r.client.Close()
}
