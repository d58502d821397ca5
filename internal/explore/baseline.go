package explore

import (
	"sync"
)

type baselineKey struct {
	operation string
	scale     string
}

// BaselineTracker records the Naive@1 throughput per (operation, scale).
// A baseline is set at most once and never changes afterwards.
type BaselineTracker struct {
	mu      sync.RWMutex
	entries map[baselineKey]float64
}

func NewBaselineTracker() *BaselineTracker {
	return &BaselineTracker{entries: make(map[baselineKey]float64)}
}

// BaselineFor returns the recorded baseline, if any.
func (t *BaselineTracker) BaselineFor(operation, scale string) (float64, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	v, ok := t.entries[baselineKey{operation, scale}]
	return v, ok
}

// Establish records a baseline. Re-establishing the same value is a no-op;
// a different value is an invariant violation.
func (t *BaselineTracker) Establish(operation, scale string, throughput float64) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	k := baselineKey{operation, scale}
	if old, ok := t.entries[k]; ok {
		if old != throughput {
			return invariantf("baseline for %s/%s already %.4f, refusing %.4f", operation, scale, old, throughput)
		}
		return nil
	}
	t.entries[k] = throughput
	return nil
}

// Speedup divides a throughput by the recorded baseline. ok is false when
// no baseline exists or the baseline is not positive.
func (t *BaselineTracker) Speedup(operation, scale string, throughput float64) (speedup float64, ok bool) {
	base, found := t.BaselineFor(operation, scale)
	if !found || base <= 0 {
		return 0, false
	}
	return throughput / base, true
}

func (t *BaselineTracker) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}
