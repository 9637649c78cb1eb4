// Package ratelimit implements fixed-window per-key rate limiting.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Limiter decides whether one more action for key fits the current window.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// Unlimited allows everything. Used when the limit is zero.
type Unlimited struct{}

func (Unlimited) Allow(context.Context, string) (bool, error) { return true, nil }

type window struct {
	start time.Time
	count int
}

// Memory is a process-local fixed-window limiter.
type Memory struct {
	limit  int
	period time.Duration
	now    func() time.Time

	mu      sync.Mutex
	windows map[string]*window
}

// NewMemory allows limit actions per key in every period.
func NewMemory(limit int, period time.Duration) *Memory {
	return &Memory{
		limit:   limit,
		period:  period,
		now:     time.Now,
		windows: make(map[string]*window),
	}
}

func (m *Memory) Allow(_ context.Context, key string) (bool, error) {
	if m.limit <= 0 {
		return true, nil
	}

	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()

	w, ok := m.windows[key]
	if !ok || now.Sub(w.start) >= m.period {
		w = &window{start: now}
		m.windows[key] = w
	}
	w.count++
	return w.count <= m.limit, nil
}

// Sweep drops windows that have expired. Run it periodically to bound memory.
func (m *Memory) Sweep() {
	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, w := range m.windows {
		if now.Sub(w.start) >= m.period {
			delete(m.windows, k)
		}
	}
}

// StartSweeper sweeps once per period until ctx is done.
func (m *Memory) StartSweeper(ctx context.Context) {
	if m.period <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(m.period)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				m.Sweep()
			case <-ctx.Done():
				return
			}
		}
	}()
}
