// Package store provides durable key/value backends with a byte quota,
// plus a recency-aware adapter that evicts stale entries when a write
// exceeds the quota.
package store

import (
	"errors"

	"github.com/liftlog/routinecache/logger"
)

// ErrQuotaExceeded is returned by Put when writing the value would push the
// store past its configured byte budget.
var ErrQuotaExceeded = errors.New("store: quota exceeded")

// DefaultMaxBytes is the default byte budget for a store. It mirrors the
// per-origin quota the application is given on end-user devices.
const DefaultMaxBytes = 5 << 20

// Store is a synchronous, bounded key-value store. Implementations must be
// safe for concurrent use.
type Store interface {
	// Put stores value under key, replacing any existing value. Returns
	// ErrQuotaExceeded when the write would exceed the byte budget.
	Put(key string, value []byte) error
	// Get returns the stored value and whether the key was present.
	Get(key string) ([]byte, bool, error)
	// Delete removes a key, reporting whether it was present.
	Delete(key string) (bool, error)
	// Keys returns every key starting with prefix. An empty prefix
	// returns all keys.
	Keys(prefix string) ([]string, error)
	// Len returns the number of stored keys.
	Len() (int, error)
	// Close shuts down the store.
	Close() error
}

type config struct {
	maxBytes int64
	logger   logger.Logger
}

// Option configures a Store implementation.
type Option func(*config)

func applyOptions(opts []Option) config {
	cfg := config{maxBytes: DefaultMaxBytes}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.logger == nil {
		cfg.logger = logger.NewConsoleLogger(logger.LevelNone)
	}
	return cfg
}

// WithMaxBytes sets the byte budget for stored values. Defaults to
// DefaultMaxBytes (5 MiB).
func WithMaxBytes(n int64) Option {
	return func(c *config) { c.maxBytes = n }
}

// WithLogger sets the logger used by the store.
func WithLogger(l logger.Logger) Option {
	return func(c *config) { c.logger = l }
}
