package cooldown

import (
	"context"
	"sync"
	"time"

	"signal_bot/internal/models"
)

// Ledger решает, можно ли выпустить сигнал по ключу сейчас.
// true: принять (и отметка уже обновлена), false, ключ на кулдауне.
type Ledger interface {
	CheckAndMark(ctx context.Context, key models.CooldownKey, now time.Time, window time.Duration) (bool, error)
}

// Memory: ledger в памяти процесса. Подходит для одного инстанса и для scan.
type Memory struct {
	mu   sync.Mutex
	last map[models.CooldownKey]time.Time
}

func NewMemory() *Memory {
	return &Memory{last: make(map[models.CooldownKey]time.Time)}
}

func (m *Memory) CheckAndMark(_ context.Context, key models.CooldownKey, now time.Time, window time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if prev, ok := m.last[key]; ok && window > 0 && now.Sub(prev) < window {
		return false, nil
	}
	m.last[key] = now
	return true, nil
}

// Prune выкидывает отметки старше maxAge, чтобы карта не росла бесконечно.
func (m *Memory) Prune(now time.Time, maxAge time.Duration) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for k, t := range m.last {
		if now.Sub(t) >= maxAge {
			delete(m.last, k)
			n++
		}
	}
	return n
}

// Len: для тестов и health.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.last)
}
