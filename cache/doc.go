// Package cache is the client-side cache over the remote routine database:
// three domain caches sharing one durable store, with quota-triggered LRU
// eviction, versioned envelopes and cross-context change notification.
//
// # Domain caches
//
// A [Service] exposes three views, differing in key prefix, retention and
// freshness:
//
//   - [Service.Preferences] — one record per owner under "preferences:".
//     No TTL; refreshed only explicitly. Never evicted under quota
//     pressure, so small high-value state survives a full store.
//
//   - [Service.OwnedRoutines] — the owner's newest [MaxRoutines] routines
//     under "owned-routines:". No TTL; pages force-refresh when needed.
//
//   - [Service.SharedRoutines] — routines shared with the owner under
//     "shared-routines:", de-duplicated by ID and stale after [SharedTTL].
//     Pages check [SharedRoutinesCache.IsExpired] before trusting a hit.
//
// Every stored entry is an [envelope.Envelope]: payload, write timestamp
// and schema version. Entries failing validation — unparsable bytes, a
// foreign schema version, a missing timestamp — are deleted on read and
// reported as a miss. The cache never surfaces an error to a page: writes
// report a boolean, reads degrade to misses.
//
// # Population
//
// InitCache pulls preferences and owned routines from the injected
// [source.Source] when the cache has nothing valid, or unconditionally with
// force set. A failed population leaves the cache exactly as it was and is
// paced by an advisory in-flight marker that expires after [LoadingExpiry].
//
// # Quota and eviction
//
// The durable store is shared with unrelated keys (theme, session
// coordination). When a write hits the store's byte budget, the least
// recently used quarter of the collection-cache keys is evicted and the
// write retried once; preferences and foreign keys are never victims.
//
// # Events
//
// [Service.Subscribe] delivers typed [Event]s: local saves synchronously
// within the emitting call, and — once [Service.Init] has attached the
// service to an [eventing.Bus] — changes made by other contexts
// asynchronously after their writes commit. The notifier is advisory;
// subscribers decide whether to re-read the cache or refetch.
//
// # Concurrency
//
// Operations are safe for concurrent use, but read-modify-write sequences
// (UpsertOne, RemoveOne) are not atomic across callers: interleaved calls
// lose updates, last write wins. Callers are human-paced UI actions where
// this is acceptable.
package cache
