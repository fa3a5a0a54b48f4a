package service

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"signal_bot/internal/models"
)

// State: что видно снаружи через /healthz и /proposals.
// Готовность ставится после первого завершённого цикла.
type State struct {
	ready     atomic.Bool
	startedAt time.Time

	lastTickUnix atomic.Int64 // unix seconds

	mu   sync.RWMutex
	last *models.CycleReport
}

func NewState() *State {
	s := &State{startedAt: time.Now()}
	s.ready.Store(false)
	return s
}

func (s *State) Name() string { return "health" }

// Notify запоминает последний отчёт. Ошибок не бывает.
func (s *State) Notify(_ context.Context, report models.CycleReport) error {
	s.mu.Lock()
	s.last = &report
	s.mu.Unlock()

	s.TouchTick(report.StartedAt.Add(report.Duration))
	s.SetReady(true)
	return nil
}

func (s *State) SetReady(v bool) { s.ready.Store(v) }
func (s *State) Ready() bool     { return s.ready.Load() }

func (s *State) TouchTick(t time.Time) { s.lastTickUnix.Store(t.Unix()) }
func (s *State) LastTick() time.Time {
	u := s.lastTickUnix.Load()
	if u == 0 {
		return time.Time{}
	}
	return time.Unix(u, 0)
}

// LastReport: копия последнего отчёта, ok=false до первого цикла.
func (s *State) LastReport() (models.CycleReport, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.last == nil {
		return models.CycleReport{}, false
	}
	return *s.last, true
}

func (s *State) Uptime() time.Duration { return time.Since(s.startedAt) }
