package cache

import (
	"context"
	"errors"

	"github.com/liftlog/routinecache/envelope"
	"github.com/liftlog/routinecache/routine"
	"github.com/liftlog/routinecache/source"
)

// PreferencesCache holds one preferences record per owner. It has no TTL;
// entries live until explicitly refreshed or invalidated, and the eviction
// policy never touches them.
type PreferencesCache struct {
	s *Service
}

// Get returns the cached preferences or nil on miss. Corrupt or
// stale-schema entries are deleted and read as a miss.
func (p PreferencesCache) Get(ownerID string) *routine.Preferences {
	key := PrefixPreferences + ownerID
	var env envelope.Envelope[routine.Preferences]
	if !p.s.adapter.Get(key, &env) {
		return nil
	}
	if !env.Valid() {
		p.s.log.Debug("discarding envelope with stale schema at %s", key)
		p.s.adapter.Remove(key)
		return nil
	}
	prefs := env.Data
	return &prefs
}

// Save stores the preferences wholesale and reports whether the write
// stuck. On success subscribers receive a PreferencesUpdated event.
func (p PreferencesCache) Save(ownerID string, prefs routine.Preferences) bool {
	key := PrefixPreferences + ownerID
	if !p.s.adapter.Put(key, envelope.Wrap(p.s.now(), prefs)) {
		return false
	}
	p.s.emit(Event{Kind: PreferencesUpdated, OwnerID: ownerID, Key: key})
	p.s.publishChange(key)
	return true
}

// ForceInvalidate deletes the entry outright.
func (p PreferencesCache) ForceInvalidate(ownerID string) {
	p.s.adapter.Remove(PrefixPreferences + ownerID)
}

// IsPopulating reports whether a population for this owner is in flight.
// Advisory only; the marker expires after LoadingExpiry.
func (p PreferencesCache) IsPopulating(ownerID string) bool {
	return p.s.isLoading(PrefixPreferences + ownerID)
}

// InitCache populates preferences from the owner's remote document unless a
// valid cached value already exists and force is unset. A population
// failure leaves the cache as it was; the error is returned so callers may
// retry, but nothing requires them to.
func (p PreferencesCache) InitCache(ctx context.Context, ownerID string, force bool) error {
	if p.s.source == nil {
		return nil
	}
	if !force && p.Get(ownerID) != nil {
		return nil
	}
	key := PrefixPreferences + ownerID
	if !p.s.markLoading(key) {
		return nil
	}
	rec, err := p.s.source.FetchOwnerRecord(ctx, ownerID)
	if err != nil {
		if errors.Is(err, source.ErrNotFound) {
			p.s.doneLoading(key)
			return nil
		}
		// The marker stays; its expiry paces retries of a failing source.
		p.s.log.Warn("failed to populate preferences for %s: %s", ownerID, err)
		return err
	}
	p.s.doneLoading(key)
	if rec.Preferences == nil {
		return nil
	}
	p.Save(ownerID, *rec.Preferences)
	return nil
}

// RoutinesCache is a collection cache of at most MaxRoutines routines per
// owner, newest first, de-duplicated by routine ID.
type RoutinesCache struct {
	s      *Service
	prefix string
}

// Get returns the cached collection or nil on miss.
func (c RoutinesCache) Get(ownerID string) []routine.Routine {
	key := c.prefix + ownerID
	var env envelope.Envelope[[]routine.Routine]
	if !c.s.adapter.Get(key, &env) {
		return nil
	}
	if !env.Valid() {
		c.s.log.Debug("discarding envelope with stale schema at %s", key)
		c.s.adapter.Remove(key)
		return nil
	}
	return env.Data
}

// Save replaces the collection wholesale: sorts newest first, drops
// duplicate IDs, truncates to MaxRoutines, wraps and writes. On success
// subscribers receive a RoutinesUpdated event.
func (c RoutinesCache) Save(ownerID string, items []routine.Routine) bool {
	cp := make([]routine.Routine, len(items))
	copy(cp, items)
	routine.SortNewestFirst(cp)
	cp = routine.DedupeByID(cp)
	if len(cp) > MaxRoutines {
		cp = cp[:MaxRoutines]
	}
	key := c.prefix + ownerID
	if !c.s.adapter.Put(key, envelope.Wrap(c.s.now(), cp)) {
		return false
	}
	c.s.emit(Event{Kind: RoutinesUpdated, OwnerID: ownerID, Key: key})
	c.s.publishChange(key)
	return true
}

// UpsertOne replaces the routine with a matching ID in place, or prepends
// it when absent, then saves. The read-modify-write is not atomic across
// concurrent callers; last write wins.
func (c RoutinesCache) UpsertOne(ownerID string, item routine.Routine) bool {
	cur := c.Get(ownerID)
	out := make([]routine.Routine, 0, len(cur)+1)
	replaced := false
	for _, existing := range cur {
		if existing.ID == item.ID {
			out = append(out, item)
			replaced = true
		} else {
			out = append(out, existing)
		}
	}
	if !replaced {
		out = append([]routine.Routine{item}, out...)
	}
	if len(out) > MaxRoutines {
		out = out[:MaxRoutines]
	}
	return c.Save(ownerID, out)
}

// RemoveOne drops the routine with the given ID and saves the remainder.
func (c RoutinesCache) RemoveOne(ownerID, itemID string) bool {
	cur := c.Get(ownerID)
	out := make([]routine.Routine, 0, len(cur))
	for _, existing := range cur {
		if existing.ID != itemID {
			out = append(out, existing)
		}
	}
	return c.Save(ownerID, out)
}

// ForceInvalidate deletes the collection outright.
func (c RoutinesCache) ForceInvalidate(ownerID string) {
	c.s.adapter.Remove(c.prefix + ownerID)
}

// IsPopulating reports whether a population for this owner is in flight.
func (c RoutinesCache) IsPopulating(ownerID string) bool {
	return c.s.isLoading(c.prefix + ownerID)
}

// InitCache populates the owned collection from the remote database unless
// a valid cached value exists and force is unset. Only meaningful on the
// owned-routines cache; shared routines are pushed in by their pages.
func (c RoutinesCache) InitCache(ctx context.Context, ownerID string, force bool) error {
	if c.s.source == nil {
		return nil
	}
	if !force && c.Get(ownerID) != nil {
		return nil
	}
	key := c.prefix + ownerID
	if !c.s.markLoading(key) {
		return nil
	}
	items, err := c.s.source.QueryOwnedRoutines(ctx, ownerID, MaxRoutines)
	if err != nil {
		if errors.Is(err, source.ErrNotFound) {
			c.s.doneLoading(key)
			return nil
		}
		c.s.log.Warn("failed to populate routines for %s: %s", ownerID, err)
		return err
	}
	c.s.doneLoading(key)
	c.Save(ownerID, items)
	return nil
}

// SharedRoutinesCache is the routines-shared-with-me cache. Unlike the
// owned collection it goes stale: entries older than SharedTTL read as
// expired and pages refetch before trusting them.
type SharedRoutinesCache struct {
	RoutinesCache
}

// IsExpired reports whether the cached collection is older than SharedTTL.
// A missing or invalid envelope counts as expired.
func (c SharedRoutinesCache) IsExpired(ownerID string) bool {
	key := c.prefix + ownerID
	var env envelope.Envelope[[]routine.Routine]
	if !c.s.adapter.Get(key, &env) {
		return true
	}
	if !env.Valid() {
		c.s.adapter.Remove(key)
		return true
	}
	return env.Age(c.s.now()) > SharedTTL
}
