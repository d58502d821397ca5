package monitor

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSemaphoreGuardSerializes(t *testing.T) {
	g := NewSemaphoreGuard(1)
	require.NoError(t, g.Acquire(context.Background()))
	assert.True(t, g.Busy())
	assert.False(t, g.TryAcquire())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, g.Acquire(ctx), context.DeadlineExceeded)

	g.Release()
	assert.False(t, g.Busy())
	assert.True(t, g.TryAcquire())
	g.Release()

	m := g.Metrics()
	assert.Equal(t, int64(2), m.Acquisitions)
	assert.Equal(t, int64(1), m.Contended)
	assert.Equal(t, int64(0), m.Active)
	assert.Equal(t, int64(1), m.Capacity)
}

func TestSemaphoreGuardNeverOverlaps(t *testing.T) {
	g := NewSemaphoreGuard(0)
	var (
		wg      sync.WaitGroup
		inside  int
		overlap bool
		mu      sync.Mutex
	)
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, g.Acquire(context.Background()))
			mu.Lock()
			inside++
			if inside > 1 {
				overlap = true
			}
			mu.Unlock()
			time.Sleep(time.Millisecond)
			mu.Lock()
			inside--
			mu.Unlock()
			g.Release()
		}()
	}
	wg.Wait()
	assert.False(t, overlap)
	assert.Equal(t, int64(8), g.Metrics().Acquisitions)
	assert.Greater(t, int64(g.Metrics().Held), int64(0))
}
