package cache

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLRUEvictsLeastRecentlyUsed(t *testing.T) {
	c := NewLRU[int](2, time.Minute)
	c.Set("a", 1)
	c.Set("b", 2)

	_, ok := c.Get("a")
	require.True(t, ok)

	c.Set("c", 3)
	_, ok = c.Get("b")
	assert.False(t, ok, "b was least recently used")
	v, ok := c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 1, v)
	assert.Equal(t, 2, c.Len())
}

func TestLRUExpiry(t *testing.T) {
	now := time.Date(2025, 9, 1, 12, 0, 0, 0, time.UTC)
	c := NewLRU[string](10, time.Second)
	c.now = func() time.Time { return now }

	c.Set("k", "v")
	c.Set("other", "v")
	now = now.Add(2 * time.Second)

	_, ok := c.Get("k")
	assert.False(t, ok)
	assert.Equal(t, 1, c.CleanExpired())
	assert.Zero(t, c.Len())
}

func TestLRUPurge(t *testing.T) {
	c := NewLRU[int](10, time.Minute)
	c.Set("a", 1)
	c.Purge()
	_, ok := c.Get("a")
	assert.False(t, ok)
	c.Set("b", 2)
	assert.Equal(t, 1, c.Len())
}

func TestMemoInvalidatesOnStoreChange(t *testing.T) {
	s := NewStore()
	m := NewMemo[int](s, 16, time.Minute)

	calls := 0
	compute := func() (int, error) {
		calls++
		return len(s.Transactions()), nil
	}

	v, hit, err := m.Get("count", compute)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Zero(t, v)

	_, hit, _ = m.Get("count", compute)
	assert.True(t, hit)
	assert.Equal(t, 1, calls)

	s.UpsertTransaction(tx("t1", 10))
	v, hit, _ = m.Get("count", compute)
	assert.False(t, hit)
	assert.Equal(t, 1, v)
	assert.Equal(t, 2, calls)

	hits, misses := m.Stats()
	assert.Equal(t, uint64(1), hits)
	assert.Equal(t, uint64(2), misses)
}

func TestMemoDoesNotCacheErrors(t *testing.T) {
	m := NewMemo[int](NewStore(), 16, time.Minute)
	boom := errors.New("boom")

	_, _, err := m.Get("k", func() (int, error) { return 0, boom })
	assert.ErrorIs(t, err, boom)

	v, hit, err := m.Get("k", func() (int, error) { return 7, nil })
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 7, v)
}
