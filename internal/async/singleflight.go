package async

import (
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"
)

// Singleton de-duplicates concurrent invocations sharing the same id: if
// an invocation with that id is already running, later callers await its
// result instead of starting a new one. All pending callers receive the
// same success or the same failure.
type Singleton struct {
	group singleflight.Group
}

// NewSingleton creates an empty single-flight de-duplicator.
func NewSingleton() *Singleton {
	return &Singleton{}
}

// Do runs op for id, or joins an in-flight call already running for id.
func Do[T any](s *Singleton, id string, op func() (T, error)) (T, error) {
	v, err, _ := s.group.Do(id, func() (any, error) {
		return op()
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return v.(T), nil
}

// CachingSingleton layers an LRU of prior successful results in front of
// a Singleton: at most one concurrent execution per id, and successful
// results are memoized subject to LRU eviction.
type CachingSingleton[T any] struct {
	single *Singleton
	cache  *lru.Cache[string, T]
}

// NewCachingSingleton creates a caching single-flight with the given LRU
// capacity (number of entries).
func NewCachingSingleton[T any](capacity int) (*CachingSingleton[T], error) {
	c, err := lru.New[string, T](capacity)
	if err != nil {
		return nil, err
	}
	return &CachingSingleton[T]{single: NewSingleton(), cache: c}, nil
}

// Do returns the cached result for id if present; otherwise it runs op
// (de-duplicated across concurrent callers) and caches a successful
// result.
func (c *CachingSingleton[T]) Do(id string, op func() (T, error)) (T, error) {
	if v, ok := c.cache.Get(id); ok {
		return v, nil
	}
	v, err := Do(c.single, id, op)
	if err != nil {
		var zero T
		return zero, err
	}
	c.cache.Add(id, v)
	return v, nil
}

// Evict drops id from the cache, e.g. in response to a content-repo-update.
func (c *CachingSingleton[T]) Evict(id string) {
	c.cache.Remove(id)
}

// Keys returns every id currently cached, for callers that must evict a
// set of related entries keyed by something more specific than id alone
// (e.g. id plus an ACM group suffix).
func (c *CachingSingleton[T]) Keys() []string {
	return c.cache.Keys()
}

// EvictAll clears the entire cache.
func (c *CachingSingleton[T]) EvictAll() {
	c.cache.Purge()
}
