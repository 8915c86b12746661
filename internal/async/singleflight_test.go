package async

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSingletonCoalescesConcurrentCalls(t *testing.T) {
	s := NewSingleton()
	var calls int32
	start := make(chan struct{})

	var wg sync.WaitGroup
	results := make([]int, 10)
	for i := range results {
		wg.Add(1)
		i := i
		go func() {
			defer wg.Done()
			<-start
			v, err := Do(s, "same-id", func() (int, error) {
				atomic.AddInt32(&calls, 1)
				time.Sleep(50 * time.Millisecond) // stay in flight while the other callers join
				return 42, nil
			})
			require.NoError(t, err)
			results[i] = v
		}()
	}
	close(start)
	wg.Wait()

	require.Equal(t, int32(1), calls)
	for _, v := range results {
		require.Equal(t, 42, v)
	}
}

func TestCachingSingletonMemoizesSuccess(t *testing.T) {
	c, err := NewCachingSingleton[int](16)
	require.NoError(t, err)

	var calls int
	op := func() (int, error) {
		calls++
		return calls, nil
	}

	v1, err := c.Do("k", op)
	require.NoError(t, err)
	v2, err := c.Do("k", op)
	require.NoError(t, err)

	require.Equal(t, v1, v2)
	require.Equal(t, 1, calls)
}

func TestCachingSingletonEvict(t *testing.T) {
	c, err := NewCachingSingleton[int](16)
	require.NoError(t, err)

	calls := 0
	op := func() (int, error) {
		calls++
		return calls, nil
	}

	_, _ = c.Do("k", op)
	c.Evict("k")
	_, _ = c.Do("k", op)

	require.Equal(t, 2, calls)
}
