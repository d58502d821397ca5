package explore

import (
	"sync"
	"time"
)

// Status classifies an experiment result.
type Status int

const (
	StatusMeasured Status = iota
	StatusPruned
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusMeasured:
		return "measured"
	case StatusPruned:
		return "pruned"
	case StatusFailed:
		return "failed"
	}
	return "unknown"
}

// Result is the value stored for one (operation, node, scale) key.
//
// Pruned results carry a zero throughput and were never measured. Failed
// results carry the adapter error.
type Result struct {
	Throughput float64
	Elapsed    time.Duration
	// Speedup is throughput over the baseline throughput. It is zero when the
	// baseline is zero or the result was not measured.
	Speedup float64
	Status  Status
	Err     error
}

func (r Result) Pruned() bool { return r.Status == StatusPruned }
func (r Result) Failed() bool { return r.Status == StatusFailed }
func (r Result) Measured() bool { return r.Status == StatusMeasured }

// CacheKey identifies a single experiment.
type CacheKey struct {
	Operation string
	Node      Node
	Scale     string
}

// ResultCache memoizes experiment results for one batch run. Each key is
// computed at most once.
type ResultCache struct {
	mu      sync.Mutex
	entries map[CacheKey]Result
}

func NewResultCache() *ResultCache {
	return &ResultCache{entries: make(map[CacheKey]Result)}
}

// Get returns the stored result without side effects.
func (c *ResultCache) Get(key CacheKey) (Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.entries[key]
	return r, ok
}

// LookupOrCompute returns the cached result for key, or runs compute and
// stores what it returns. cached reports whether compute was skipped. An
// error from compute is returned as is and nothing is stored.
//
// compute runs with the cache lock held so two callers can never measure
// the same key.
func (c *ResultCache) LookupOrCompute(key CacheKey, compute func() (Result, error)) (res Result, cached bool, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if r, ok := c.entries[key]; ok {
		return r, true, nil
	}
	r, err := compute()
	if err != nil {
		return Result{}, false, err
	}
	c.entries[key] = r
	return r, false, nil
}

// Len returns the number of stored entries.
func (c *ResultCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
