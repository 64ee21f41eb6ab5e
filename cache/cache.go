package cache

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/liftlog/routinecache/eventing"
	"github.com/liftlog/routinecache/logger"
	"github.com/liftlog/routinecache/source"
	"github.com/liftlog/routinecache/store"
)

const (
	// PrefixPreferences namespaces per-owner preference entries.
	PrefixPreferences = "preferences:"
	// PrefixOwnedRoutines namespaces the owner's own routine collections.
	PrefixOwnedRoutines = "owned-routines:"
	// PrefixSharedRoutines namespaces routines shared with the owner.
	PrefixSharedRoutines = "shared-routines:"

	// MaxRoutines is the number of routines a collection cache retains.
	MaxRoutines = 20
	// SharedTTL is how long a shared-routines entry stays fresh.
	SharedTTL = 5 * time.Minute
	// LoadingExpiry is how long an in-flight population marker is trusted
	// before it is considered stuck and expires.
	LoadingExpiry = 30 * time.Second

	// ChangeSubject is the bus subject change signals are published on.
	ChangeSubject = "routinecache.changes"
)

// Service is the cache subsystem: three domain caches over one durable
// store, plus the notifier that relays changes made by other contexts.
// Construct one per execution context with New; tests build fresh instances
// instead of resetting shared state.
type Service struct {
	adapter *store.Adapter
	source  source.Source
	bus     eventing.Bus
	log     logger.Logger
	now     func() time.Time

	// origin identifies this context on the bus so the notifier can drop
	// signals for writes this context made itself.
	origin string

	subMu     sync.Mutex
	subs      map[int]func(Event)
	nextSubID int

	loadMu  sync.Mutex
	loading map[string]time.Time

	notifyMu  sync.Mutex
	notifySub eventing.Subscription
}

type config struct {
	source source.Source
	bus    eventing.Bus
	logger logger.Logger
	now    func() time.Time
}

// Option configures a Service.
type Option func(*config)

// WithSource sets the remote document source used for population. Without
// one, InitCache is a no-op and the caches only hold what pages save.
func WithSource(src source.Source) Option {
	return func(c *config) { c.source = src }
}

// WithBus sets the bus used to exchange change signals with other
// execution contexts. Without one, cross-context events are disabled.
func WithBus(bus eventing.Bus) Option {
	return func(c *config) { c.bus = bus }
}

// WithLogger sets the service logger.
func WithLogger(l logger.Logger) Option {
	return func(c *config) { c.logger = l }
}

// WithClock sets the clock used for envelopes, TTLs and recency. Tests
// inject a fake clock here.
func WithClock(now func() time.Time) Option {
	return func(c *config) { c.now = now }
}

// New returns a Service over the given store. The eviction policy is scoped
// to the two collection prefixes: preferences and foreign keys sharing the
// store are never evicted under quota pressure.
func New(st store.Store, opts ...Option) *Service {
	cfg := config{now: time.Now}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.logger == nil {
		cfg.logger = logger.NewConsoleLogger(logger.LevelNone)
	}
	log := cfg.logger.WithPrefix("cache")
	return &Service{
		adapter: store.NewAdapter(st,
			store.WithAdapterClock(cfg.now),
			store.WithAdapterLogger(cfg.logger),
			store.WithEvictPrefixes(PrefixOwnedRoutines, PrefixSharedRoutines),
		),
		source:  cfg.source,
		bus:     cfg.bus,
		log:     log,
		now:     cfg.now,
		origin:  uuid.NewString(),
		subs:    make(map[int]func(Event)),
		loading: make(map[string]time.Time),
	}
}

// Preferences returns the preferences domain cache.
func (s *Service) Preferences() PreferencesCache {
	return PreferencesCache{s: s}
}

// OwnedRoutines returns the owned-routines domain cache.
func (s *Service) OwnedRoutines() RoutinesCache {
	return RoutinesCache{s: s, prefix: PrefixOwnedRoutines}
}

// SharedRoutines returns the shared-routines domain cache.
func (s *Service) SharedRoutines() SharedRoutinesCache {
	return SharedRoutinesCache{RoutinesCache{s: s, prefix: PrefixSharedRoutines}}
}

// InitCache populates the preferences and owned-routines caches for the
// owner. Populations that fail leave the caches untouched; the returned
// error is informational and safe to ignore.
func (s *Service) InitCache(ctx context.Context, ownerID string, force bool) error {
	return errors.Join(
		s.Preferences().InitCache(ctx, ownerID, force),
		s.OwnedRoutines().InitCache(ctx, ownerID, force),
	)
}
