// Package source is the cache's only view of the remote document database.
// The cache never talks to the network directly; it asks a Source during
// population and treats every failure as "leave the cache as it was".
package source

import (
	"context"
	"errors"

	"github.com/liftlog/routinecache/routine"
)

// ErrNotFound indicates the requested document does not exist. The cache
// treats it as an empty result, not a failure.
var ErrNotFound = errors.New("source: not found")

// OwnerRecord is the per-user document the application keeps remotely. The
// cache only reads the nested preferences object; the rest of the document
// belongs to other parts of the application.
type OwnerRecord struct {
	ID          string               `json:"id"`
	DisplayName string               `json:"displayName,omitempty"`
	Preferences *routine.Preferences `json:"preferences,omitempty"`
}

// Source is the abstract contract to the remote database.
type Source interface {
	// FetchOwnerRecord looks up a single owner document.
	FetchOwnerRecord(ctx context.Context, ownerID string) (*OwnerRecord, error)
	// QueryOwnedRoutines returns the owner's routines, newest first,
	// bounded by limit.
	QueryOwnedRoutines(ctx context.Context, ownerID string, limit int) ([]routine.Routine, error)
}
