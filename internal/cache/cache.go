package cache

import (
	"strconv"
	"sync/atomic"
	"time"
)

// Versioned is anything that bumps a counter on every change, like Store.
type Versioned interface {
	Version() uint64
}

// Memo caches values derived from a Versioned source. Keys are prefixed with
// the source version, so a mutation makes every earlier entry unreachable and
// the LRU ages it out.
type Memo[T any] struct {
	src    Versioned
	lru    *LRU[T]
	hits   atomic.Uint64
	misses atomic.Uint64
}

func NewMemo[T any](src Versioned, maxSize int, ttl time.Duration) *Memo[T] {
	return &Memo[T]{src: src, lru: NewLRU[T](maxSize, ttl)}
}

// Get returns the cached value for key at the current version, computing and
// storing it on a miss. Errors are returned as is and never cached.
func (m *Memo[T]) Get(key string, compute func() (T, error)) (T, bool, error) {
	k := strconv.FormatUint(m.src.Version(), 10) + "|" + key
	if v, ok := m.lru.Get(k); ok {
		m.hits.Add(1)
		return v, true, nil
	}
	m.misses.Add(1)

	v, err := compute()
	if err != nil {
		var zero T
		return zero, false, err
	}
	m.lru.Set(k, v)
	return v, false, nil
}

// Stats returns hit and miss counters.
func (m *Memo[T]) Stats() (hits, misses uint64) {
	return m.hits.Load(), m.misses.Load()
}

// Janitor drops expired entries every interval until stop is closed.
func (m *Memo[T]) Janitor(interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.lru.CleanExpired()
		case <-stop:
			return
		}
	}
}
