package async

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWorkerPoolBoundsConcurrency(t *testing.T) {
	var mu sync.Mutex
	active, maxActive := 0, 0
	release := make(chan struct{})

	pool := NewWorkerPool(2, func(_ context.Context, _ int) (int, error) {
		mu.Lock()
		active++
		if active > maxActive {
			maxActive = active
		}
		mu.Unlock()
		<-release
		mu.Lock()
		active--
		mu.Unlock()
		return 0, nil
	})

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = pool.Run(context.Background(), 0)
		}()
	}

	close(release)
	wg.Wait()

	require.LessOrEqual(t, maxActive, 2)
}

func TestWorkerPoolCapacityDefaultsToOne(t *testing.T) {
	pool := NewWorkerPool(0, func(_ context.Context, a int) (int, error) { return a, nil })
	require.Equal(t, 1, pool.Capacity())
}

func TestWorkerPoolRunCancelledWhileWaiting(t *testing.T) {
	release := make(chan struct{})
	acquired := make(chan struct{})
	pool := NewWorkerPool(1, func(_ context.Context, _ int) (int, error) {
		close(acquired)
		<-release
		return 0, nil
	})

	go func() { _, _ = pool.Run(context.Background(), 0) }()
	<-acquired

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := pool.Run(ctx, 0)
	require.ErrorIs(t, err, context.Canceled)

	close(release)
}
