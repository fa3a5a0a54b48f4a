package exchange

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"signal_bot/internal/models"
	"signal_bot/pkg/logger"
)

type fundingPoint struct {
	rate float64
	at   time.Time
}

// FundingStream держит один websocket на канал funding-rate и кэширует
// последние ставки по instId. Читает OKX.FundingRate.
type FundingStream struct {
	url      string
	wsDialer *websocket.Dialer
	now      func() time.Time

	mu    sync.RWMutex
	rates map[string]fundingPoint
}

func NewFundingStream(cfg OKXConfig) *FundingStream {
	return &FundingStream{
		url:      cfg.WSURL,
		wsDialer: &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		now:      time.Now,
		rates:    make(map[string]fundingPoint),
	}
}

// Rate: ставка из кэша, если она не старше maxAge.
func (s *FundingStream) Rate(instID string, maxAge time.Duration) (float64, bool) {
	s.mu.RLock()
	p, ok := s.rates[instID]
	s.mu.RUnlock()
	if !ok {
		return 0, false
	}
	if maxAge > 0 && s.now().Sub(p.at) > maxAge {
		return 0, false
	}
	return p.rate, true
}

func (s *FundingStream) set(instID string, rate float64) {
	s.mu.Lock()
	s.rates[instID] = fundingPoint{rate: rate, at: s.now()}
	s.mu.Unlock()
}

type fundingFrame struct {
	Event string `json:"event"`
	Arg   struct {
		Channel string `json:"channel"`
		InstID  string `json:"instId"`
	} `json:"arg"`
	Data []struct {
		InstID      string `json:"instId"`
		FundingRate string `json:"fundingRate"`
	} `json:"data"`
}

// handle разбирает один кадр; возвращает число обновлённых ставок.
func (s *FundingStream) handle(msg []byte) int {
	var frame fundingFrame
	if err := sonic.Unmarshal(msg, &frame); err != nil {
		return 0
	}
	if frame.Arg.Channel != "funding-rate" || len(frame.Data) == 0 {
		return 0
	}
	n := 0
	for _, d := range frame.Data {
		rate, err := strconv.ParseFloat(d.FundingRate, 64)
		if err != nil {
			continue
		}
		id := d.InstID
		if id == "" {
			id = frame.Arg.InstID
		}
		s.set(id, rate)
		n++
	}
	return n
}

// Run блокирует до отмены ctx: подключение, подписка пачкой, read-loop,
// переподключение через секунду после обрыва.
func (s *FundingStream) Run(ctx context.Context, instIDs []string) {
	if len(instIDs) == 0 {
		return
	}
	log := logger.L().With(zap.String("component", "okx_funding_ws"))

	args := make([]map[string]string, 0, len(instIDs))
	for _, id := range instIDs {
		args = append(args, map[string]string{
			"channel": "funding-rate",
			"instId":  id,
		})
	}

	for {
		if ctx.Err() != nil {
			return
		}
		log.Debug("connect", zap.Int("instruments", len(instIDs)))
		conn, _, err := s.wsDialer.DialContext(ctx, s.url, nil)
		if err != nil {
			log.Warn("dial failed", zap.Error(err))
			if !sleepCtx(ctx, time.Second) {
				return
			}
			continue
		}

		if err := conn.WriteJSON(map[string]any{"op": "subscribe", "args": args}); err != nil {
			log.Warn("subscribe failed", zap.Error(err))
			_ = conn.Close()
			if !sleepCtx(ctx, time.Second) {
				return
			}
			continue
		}

		// keepalive ping каждые 20s: иначе OKX рвёт соединение
		stopPing := make(chan struct{})
		go func() {
			t := time.NewTicker(20 * time.Second)
			defer t.Stop()
			for {
				select {
				case <-ctx.Done():
					_ = conn.Close()
					return
				case <-stopPing:
					return
				case <-t.C:
					_ = conn.WriteMessage(websocket.TextMessage, []byte("ping"))
				}
			}
		}()

		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				if ctx.Err() == nil {
					log.Warn("read failed", zap.Error(err))
				}
				break
			}
			if string(msg) == "pong" {
				continue
			}
			s.handle(msg)
		}
		close(stopPing)
		_ = conn.Close()

		if !sleepCtx(ctx, time.Second) {
			return
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// FundingInstIDs: instId бессрочных свопов OKX для подписки на funding-rate.
// Инструменты, которые не удалось разобрать, пропускаются.
func FundingInstIDs(instruments []string) []string {
	out := make([]string, 0, len(instruments))
	for _, inst := range instruments {
		id, err := okxInstID(inst, models.MarketFutures)
		if err != nil {
			logger.Warn("okx funding: skip %s: %v", inst, err)
			continue
		}
		out = append(out, id)
	}
	return out
}
