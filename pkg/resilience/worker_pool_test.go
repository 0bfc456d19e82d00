package resilience

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkerPoolExecutesJobs(t *testing.T) {
	pool := NewWorkerPool(3, 6)

	var count int32
	for i := 0; i < 10; i++ {
		err := pool.Submit(context.Background(), func() {
			atomic.AddInt32(&count, 1)
		})
		require.NoError(t, err)
	}

	pool.Close()
	pool.Wait()

	assert.Equal(t, int32(10), atomic.LoadInt32(&count))
}

func TestWorkerPoolSubmitAfterClose(t *testing.T) {
	pool := NewWorkerPool(1, 1)
	pool.Close()

	assert.ErrorIs(t, pool.Submit(context.Background(), func() {}), ErrWorkerPoolClosed)
	_, err := pool.TrySubmit("k", func() {})
	assert.ErrorIs(t, err, ErrWorkerPoolClosed)
}

func TestWorkerPoolTrySubmitSkipsBusyKey(t *testing.T) {
	pool := NewWorkerPool(1, 4)
	defer func() {
		pool.Close()
		pool.Wait()
	}()

	release := make(chan struct{})
	started := make(chan struct{})
	ok, err := pool.TrySubmit("peer-a", func() {
		close(started)
		<-release
	})
	require.NoError(t, err)
	require.True(t, ok)
	<-started

	ok, err = pool.TrySubmit("peer-a", func() { t.Error("duplicate job ran") })
	require.NoError(t, err)
	assert.False(t, ok)
	assert.True(t, pool.InFlight("peer-a"))

	done := make(chan struct{})
	ok, err = pool.TrySubmit("peer-b", func() { close(done) })
	require.NoError(t, err)
	assert.True(t, ok)

	close(release)
	<-done
	pool.Close()
	pool.Wait()
	assert.False(t, pool.InFlight("peer-a"))
}

func TestWorkerPoolTrySubmitFullQueue(t *testing.T) {
	pool := NewWorkerPool(1, 1)
	release := make(chan struct{})
	started := make(chan struct{})
	defer func() {
		close(release)
		pool.Close()
		pool.Wait()
	}()

	_, err := pool.TrySubmit("a", func() { close(started); <-release })
	require.NoError(t, err)
	<-started
	_, err = pool.TrySubmit("b", func() {})
	require.NoError(t, err)

	ok, err := pool.TrySubmit("c", func() {})
	assert.False(t, ok)
	assert.ErrorIs(t, err, ErrWorkerPoolFull)
	assert.False(t, pool.InFlight("c"))
}
