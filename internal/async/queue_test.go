package async

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestQueueRunsSameNameInOrder(t *testing.T) {
	q := NewQueue()
	var mu sync.Mutex
	var order []int

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		i := i
		go func() {
			defer wg.Done()
			_, err := Submit(q, "same", func() (struct{}, error) {
				time.Sleep(time.Millisecond)
				mu.Lock()
				order = append(order, i)
				mu.Unlock()
				return struct{}{}, nil
			})
			require.NoError(t, err)
		}()
		time.Sleep(time.Millisecond) // bias submission order
	}
	wg.Wait()

	require.Len(t, order, 5)
	for i := 1; i < len(order); i++ {
		require.Less(t, order[i-1], order[i])
	}
}

func TestQueueDifferentNamesConcurrent(t *testing.T) {
	q := NewQueue()
	var active int32
	var maxActive int32

	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		name := string(rune('a' + i))
		go func() {
			defer wg.Done()
			_, _ = Submit(q, name, func() (struct{}, error) {
				n := atomic.AddInt32(&active, 1)
				for {
					m := atomic.LoadInt32(&maxActive)
					if n <= m || atomic.CompareAndSwapInt32(&maxActive, m, n) {
						break
					}
				}
				time.Sleep(10 * time.Millisecond)
				atomic.AddInt32(&active, -1)
				return struct{}{}, nil
			})
		}()
	}
	wg.Wait()

	require.Greater(t, maxActive, int32(1))
}

func TestOpQueueSerializesByDerivedName(t *testing.T) {
	q := NewQueue()
	var mu sync.Mutex
	var seen []string

	op := OpQueue(q, func(s string) string { return s }, func(s string) (string, error) {
		mu.Lock()
		seen = append(seen, s)
		mu.Unlock()
		return s, nil
	})

	v, err := op("x")
	require.NoError(t, err)
	require.Equal(t, "x", v)
	require.Equal(t, []string{"x"}, seen)
}
