package monitor

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"
)

// SemaphoreGuard implements Guard on a weighted semaphore.
type SemaphoreGuard struct {
	sem       *semaphore.Weighted
	capacity  int64
	active    atomic.Int64
	acquired  atomic.Int64
	contended atomic.Int64

	mu     sync.Mutex
	since  []time.Time
	heldNs atomic.Int64
}

// NewSemaphoreGuard creates a guard admitting capacity holders at once.
// Exploration uses a capacity of one.
func NewSemaphoreGuard(capacity int64) *SemaphoreGuard {
	if capacity < 1 {
		capacity = 1
	}
	return &SemaphoreGuard{
		sem:      semaphore.NewWeighted(capacity),
		capacity: capacity,
	}
}

func (g *SemaphoreGuard) Acquire(ctx context.Context) error {
	if g.sem.TryAcquire(1) {
		g.acquiredNow()
		return nil
	}
	g.contended.Add(1)
	if err := g.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	g.acquiredNow()
	return nil
}

func (g *SemaphoreGuard) TryAcquire() bool {
	if g.sem.TryAcquire(1) {
		g.acquiredNow()
		return true
	}
	return false
}

func (g *SemaphoreGuard) acquiredNow() {
	g.active.Add(1)
	g.acquired.Add(1)
	g.mu.Lock()
	g.since = append(g.since, time.Now())
	g.mu.Unlock()
}

func (g *SemaphoreGuard) Release() {
	g.mu.Lock()
	if n := len(g.since); n > 0 {
		g.heldNs.Add(int64(time.Since(g.since[0])))
		g.since = g.since[1:]
	}
	g.mu.Unlock()
	g.active.Add(-1)
	g.sem.Release(1)
}

func (g *SemaphoreGuard) Busy() bool {
	return g.active.Load() > 0
}

func (g *SemaphoreGuard) Metrics() Metrics {
	return Metrics{
		Active:       g.active.Load(),
		Capacity:     g.capacity,
		Acquisitions: g.acquired.Load(),
		Contended:    g.contended.Load(),
		Held:         time.Duration(g.heldNs.Load()),
	}
}

var _ Guard = (*SemaphoreGuard)(nil)
