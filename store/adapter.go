package store

import (
	"encoding/json"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/liftlog/routinecache/logger"
)

// EvictFraction is the share of tracked cache-domain keys removed when a
// write hits the quota. At least one key is always removed.
const EvictFraction = 0.25

// Adapter wraps a Store with JSON serialization, corruption self-healing,
// recency tracking and quota-triggered eviction. It never returns errors:
// failed writes report false and failed reads degrade to misses.
type Adapter struct {
	store         Store
	tracker       *Tracker
	log           logger.Logger
	evictPrefixes []string
}

// AdapterOption configures an Adapter.
type AdapterOption func(*Adapter)

// WithEvictPrefixes sets the key prefixes the eviction policy is allowed to
// delete. Keys outside these prefixes are never evicted.
func WithEvictPrefixes(prefixes ...string) AdapterOption {
	return func(a *Adapter) { a.evictPrefixes = prefixes }
}

// WithAdapterLogger sets the adapter's logger.
func WithAdapterLogger(l logger.Logger) AdapterOption {
	return func(a *Adapter) { a.log = l }
}

// WithAdapterClock sets the clock used for recency tracking.
func WithAdapterClock(now func() time.Time) AdapterOption {
	return func(a *Adapter) { a.tracker = NewTracker(now) }
}

// NewAdapter returns an Adapter over the given store with a fresh Tracker.
func NewAdapter(s Store, opts ...AdapterOption) *Adapter {
	a := &Adapter{
		store:   s,
		tracker: NewTracker(nil),
		log:     logger.NewConsoleLogger(logger.LevelNone),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.log = a.log.WithPrefix("store")
	return a
}

// Tracker exposes the adapter's recency tracker.
func (a *Adapter) Tracker() *Tracker {
	return a.tracker
}

// Put marshals v as JSON and writes it under key. On a quota failure the
// eviction policy runs once and the write is retried exactly once. Returns
// whether the value is durably stored.
func (a *Adapter) Put(key string, v any) bool {
	data, err := json.Marshal(v)
	if err != nil {
		a.log.Warn("failed to marshal value for %s: %s", key, err)
		return false
	}
	err = a.store.Put(key, data)
	if errors.Is(err, ErrQuotaExceeded) {
		if !a.evict() {
			a.log.Warn("quota exceeded for %s and eviction freed nothing, write abandoned", key)
			return false
		}
		err = a.store.Put(key, data)
	}
	if err != nil {
		a.log.Warn("failed to store %s: %s", key, err)
		return false
	}
	a.tracker.Touch(key)
	return true
}

// Get reads key and unmarshals it into out. Corrupt entries are deleted and
// reported as a miss. Returns whether out was populated.
func (a *Adapter) Get(key string, out any) bool {
	data, found, err := a.store.Get(key)
	if err != nil {
		a.log.Warn("failed to read %s: %s", key, err)
		return false
	}
	if !found {
		return false
	}
	if err := json.Unmarshal(data, out); err != nil {
		a.log.Warn("corrupt entry at %s, removing: %s", key, err)
		a.Remove(key)
		return false
	}
	a.tracker.Touch(key)
	return true
}

// Remove deletes key from the store and the tracker, reporting whether the
// store held it.
func (a *Adapter) Remove(key string) bool {
	ok, err := a.store.Delete(key)
	if err != nil {
		a.log.Warn("failed to delete %s: %s", key, err)
	}
	a.tracker.Forget(key)
	return ok && err == nil
}

// evict removes the least recently used quarter of the tracked cache-domain
// keys, at least one. Keys outside the configured prefixes are untouched.
// Reports whether at least one key was removed.
func (a *Adapter) evict() bool {
	type candidate struct {
		key     string
		touched int64
	}
	var candidates []candidate
	for key, touched := range a.tracker.Snapshot() {
		for _, prefix := range a.evictPrefixes {
			if strings.HasPrefix(key, prefix) {
				candidates = append(candidates, candidate{key, touched})
				break
			}
		}
	}
	if len(candidates) == 0 {
		return false
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].touched != candidates[j].touched {
			return candidates[i].touched < candidates[j].touched
		}
		return candidates[i].key < candidates[j].key
	})
	count := int(EvictFraction * float64(len(candidates)))
	if count < 1 {
		count = 1
	}
	var removed int
	for _, c := range candidates[:count] {
		if a.Remove(c.key) {
			removed++
		}
	}
	a.log.Debug("evicted %d of %d cache keys under quota pressure", removed, len(candidates))
	return removed > 0
}
