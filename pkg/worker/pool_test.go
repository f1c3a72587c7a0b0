package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPool_ProcessesAllItems(t *testing.T) {
	var processed int64
	pool := NewPool(4, 100, func(_ context.Context, _ int) error {
		atomic.AddInt64(&processed, 1)
		return nil
	})

	require.NoError(t, pool.Start(context.Background()))

	for i := 0; i < 50; i++ {
		require.NoError(t, pool.Submit(i))
	}

	require.NoError(t, pool.Stop(5*time.Second))
	assert.Equal(t, int64(50), atomic.LoadInt64(&processed))

	stats := pool.Stats()
	assert.Equal(t, int64(50), stats.Submitted)
	assert.Equal(t, int64(50), stats.Processed)
	assert.Equal(t, int64(0), stats.Failed)
}

func TestPool_FailureIsolation(t *testing.T) {
	var mu sync.Mutex
	succeeded := make(map[string]bool)

	pool := NewPool(2, 10, func(_ context.Context, key string) error {
		if key == "bad.gif" {
			return errors.New("process failed")
		}
		mu.Lock()
		succeeded[key] = true
		mu.Unlock()
		return nil
	})

	require.NoError(t, pool.Start(context.Background()))
	require.NoError(t, pool.Submit("a.png"))
	require.NoError(t, pool.Submit("bad.gif"))
	require.NoError(t, pool.Submit("b.jpg"))
	require.NoError(t, pool.Stop(5*time.Second))

	assert.True(t, succeeded["a.png"])
	assert.True(t, succeeded["b.jpg"])
	assert.Equal(t, int64(1), pool.Stats().Failed)
	assert.Equal(t, int64(3), pool.Stats().Processed)
}

func TestPool_SubmitBeforeStart(t *testing.T) {
	pool := NewPool(1, 1, func(_ context.Context, _ int) error { return nil })
	assert.ErrorIs(t, pool.Submit(1), ErrPoolNotStarted)
}

func TestPool_QueueFull(t *testing.T) {
	block := make(chan struct{})
	pool := NewPool(1, 1, func(_ context.Context, _ int) error {
		<-block
		return nil
	})
	require.NoError(t, pool.Start(context.Background()))

	// First item occupies the worker, second fills the queue
	require.NoError(t, pool.Submit(1))
	// Give the worker time to pick up item 1
	time.Sleep(20 * time.Millisecond)
	require.NoError(t, pool.Submit(2))

	err := pool.Submit(3)
	assert.ErrorIs(t, err, ErrQueueFull)
	assert.Equal(t, int64(1), pool.Stats().Dropped)

	close(block)
	require.NoError(t, pool.Stop(5*time.Second))
}

func TestPool_DoubleStart(t *testing.T) {
	pool := NewPool(1, 1, func(_ context.Context, _ int) error { return nil })
	require.NoError(t, pool.Start(context.Background()))
	assert.ErrorIs(t, pool.Start(context.Background()), ErrPoolAlreadyStarted)
	require.NoError(t, pool.Stop(time.Second))
}

func TestPool_NilProcessorPanics(t *testing.T) {
	assert.Panics(t, func() {
		NewPool[int](1, 1, nil)
	})
}

func TestPool_StopIdempotent(t *testing.T) {
	pool := NewPool(1, 1, func(_ context.Context, _ int) error { return nil })
	require.NoError(t, pool.Start(context.Background()))
	require.NoError(t, pool.Stop(time.Second))
	require.NoError(t, pool.Stop(time.Second))
}
