package monitor

import (
	"context"
	"time"
)

// Metrics is a snapshot of guard usage.
type Metrics struct {
	// Active is the number of measurements holding the guard right now.
	Active int64
	// Capacity is how many measurements may hold the guard at once.
	Capacity int64
	// Acquisitions counts every successful acquire since creation.
	Acquisitions int64
	// Contended counts acquires that had to wait.
	Contended int64
	// Held is the total time the guard was held.
	Held time.Duration
}

// Guard serializes access to the measured hardware. Measurements that
// compete for the same cores or accelerator would corrupt each other's
// timings, so every measurement holds the guard for its whole duration.
type Guard interface {
	// Acquire blocks until the guard is free or ctx is done.
	// The caller MUST call Release() when the measurement completes.
	Acquire(ctx context.Context) error

	// TryAcquire takes the guard only if it is free right now.
	TryAcquire() bool

	// Release returns the guard.
	Release()

	// Busy reports whether a measurement is running.
	Busy() bool

	Metrics() Metrics
}
