package store

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type payload struct {
	Name string `json:"name"`
}

func TestAdapterPutGet(t *testing.T) {
	a := NewAdapter(NewInMemory())
	assert.True(t, a.Put("preferences:u1", payload{Name: "alice"}))

	var out payload
	assert.True(t, a.Get("preferences:u1", &out))
	assert.Equal(t, "alice", out.Name)

	_, tracked := a.Tracker().LastTouch("preferences:u1")
	assert.True(t, tracked)

	assert.False(t, a.Get("preferences:u2", &out))
}

func TestAdapterCorruptEntrySelfHeals(t *testing.T) {
	s := NewInMemory()
	a := NewAdapter(s)
	require.NoError(t, s.Put("preferences:u1", []byte("not json {")))

	var out payload
	assert.False(t, a.Get("preferences:u1", &out))

	// the corrupt entry was deleted, not just skipped
	_, found, err := s.Get("preferences:u1")
	assert.NoError(t, err)
	assert.False(t, found)
}

func TestAdapterRemoveForgetsRecency(t *testing.T) {
	a := NewAdapter(NewInMemory())
	require.True(t, a.Put("owned-routines:u1", payload{Name: "x"}))
	assert.True(t, a.Remove("owned-routines:u1"))
	_, tracked := a.Tracker().LastTouch("owned-routines:u1")
	assert.False(t, tracked)
	assert.False(t, a.Remove("owned-routines:u1"))
}

func TestEvictionRemovesOldestQuarter(t *testing.T) {
	clk := newFakeClock()
	s := NewInMemory()
	a := NewAdapter(s,
		WithAdapterClock(clk.Now),
		WithEvictPrefixes("owned-routines:", "shared-routines:"),
	)

	// 8 cache-domain keys with distinct, increasing touch times, plus
	// non-cache keys that must survive.
	require.NoError(t, s.Put("theme", []byte(`"dark"`)))
	require.True(t, a.Put("preferences:u1", payload{Name: "keep"}))
	for i := 0; i < 8; i++ {
		require.True(t, a.Put(fmt.Sprintf("owned-routines:u%d", i), payload{Name: "r"}))
		clk.Advance(time.Second)
	}

	assert.True(t, a.evict())

	// floor(0.25*8) == 2 oldest removed
	for i, key := range []string{
		"owned-routines:u0", "owned-routines:u1", "owned-routines:u2",
		"owned-routines:u3", "owned-routines:u4", "owned-routines:u5",
		"owned-routines:u6", "owned-routines:u7",
	} {
		_, found, err := s.Get(key)
		require.NoError(t, err)
		assert.Equal(t, i >= 2, found, key)
	}
	_, found, _ := s.Get("theme")
	assert.True(t, found)
	_, found, _ = s.Get("preferences:u1")
	assert.True(t, found)
}

func TestEvictionRemovesAtLeastOne(t *testing.T) {
	clk := newFakeClock()
	a := NewAdapter(NewInMemory(),
		WithAdapterClock(clk.Now),
		WithEvictPrefixes("owned-routines:"),
	)
	require.True(t, a.Put("owned-routines:u1", payload{Name: "only"}))
	assert.True(t, a.evict())
	assert.Equal(t, 0, a.Tracker().Len())
}

func TestEvictionWithNoCandidates(t *testing.T) {
	a := NewAdapter(NewInMemory(), WithEvictPrefixes("owned-routines:"))
	require.True(t, a.Put("preferences:u1", payload{Name: "keep"}))
	assert.False(t, a.evict())
}

func TestQuotaExceededThenRecovers(t *testing.T) {
	clk := newFakeClock()
	s := NewInMemory(WithMaxBytes(160))
	a := NewAdapter(s,
		WithAdapterClock(clk.Now),
		WithEvictPrefixes("owned-routines:"),
	)

	// Fill the store close to the budget.
	for i := 0; i < 4; i++ {
		require.True(t, a.Put(fmt.Sprintf("owned-routines:u%d", i), payload{Name: "0123456789"}))
		clk.Advance(time.Second)
	}

	// This write does not fit; the adapter must evict and retry.
	assert.True(t, a.Put("owned-routines:new", payload{Name: "0123456789"}))

	var out payload
	assert.True(t, a.Get("owned-routines:new", &out))
	// the oldest entry was the victim
	assert.False(t, a.Get("owned-routines:u0", &out))
}

// wrappingStore decorates a backend so quota failures come back wrapped,
// the way a future backend might annotate them.
type wrappingStore struct {
	Store
}

func (w wrappingStore) Put(key string, value []byte) error {
	if err := w.Store.Put(key, value); err != nil {
		return fmt.Errorf("backend put %s: %w", key, err)
	}
	return nil
}

func TestQuotaDetectedThroughWrappedError(t *testing.T) {
	clk := newFakeClock()
	s := wrappingStore{NewInMemory(WithMaxBytes(160))}
	a := NewAdapter(s,
		WithAdapterClock(clk.Now),
		WithEvictPrefixes("owned-routines:"),
	)

	for i := 0; i < 4; i++ {
		require.True(t, a.Put(fmt.Sprintf("owned-routines:u%d", i), payload{Name: "0123456789"}))
		clk.Advance(time.Second)
	}

	// The wrapped quota error must still trigger eviction and the retry.
	assert.True(t, a.Put("owned-routines:new", payload{Name: "0123456789"}))
	var out payload
	assert.False(t, a.Get("owned-routines:u0", &out))
}

func TestQuotaExceededNothingToEvict(t *testing.T) {
	s := NewInMemory(WithMaxBytes(10))
	a := NewAdapter(s, WithEvictPrefixes("owned-routines:"))

	// Too big to ever fit and no cache-domain keys to evict.
	assert.False(t, a.Put("preferences:u1", payload{Name: "this will not fit in ten bytes"}))
}
