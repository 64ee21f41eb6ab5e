package store

import (
	"sync"
	"time"
)

// Tracker records the last time each key was read or written. It is
// process-local and rebuilt empty on every start; it is never persisted.
type Tracker struct {
	mu      sync.Mutex
	touched map[string]int64
	now     func() time.Time
}

// NewTracker returns an empty Tracker using the given clock. A nil clock
// defaults to time.Now.
func NewTracker(now func() time.Time) *Tracker {
	if now == nil {
		now = time.Now
	}
	return &Tracker{touched: make(map[string]int64), now: now}
}

// Touch records an access of key at the current time.
func (t *Tracker) Touch(key string) {
	t.mu.Lock()
	t.touched[key] = t.now().UnixMilli()
	t.mu.Unlock()
}

// Forget drops the key from the tracker.
func (t *Tracker) Forget(key string) {
	t.mu.Lock()
	delete(t.touched, key)
	t.mu.Unlock()
}

// LastTouch returns the recorded last-access time in unix millis.
func (t *Tracker) LastTouch(key string) (int64, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	ts, ok := t.touched[key]
	return ts, ok
}

// Snapshot returns a copy of the tracked key set.
func (t *Tracker) Snapshot() map[string]int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[string]int64, len(t.touched))
	for k, v := range t.touched {
		out[k] = v
	}
	return out
}

// Len returns the number of tracked keys.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.touched)
}
