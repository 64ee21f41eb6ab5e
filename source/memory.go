package source

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/liftlog/routinecache/routine"
)

// Memory is an in-process Source for tests and local development. Seeded
// routines without an ID get one assigned, like the remote database would.
type Memory struct {
	mu       sync.Mutex
	owners   map[string]*OwnerRecord
	routines map[string][]routine.Routine
	err      error
}

var _ Source = (*Memory)(nil)

// NewMemory returns an empty in-process Source.
func NewMemory() *Memory {
	return &Memory{
		owners:   make(map[string]*OwnerRecord),
		routines: make(map[string][]routine.Routine),
	}
}

// PutOwner seeds an owner record.
func (m *Memory) PutOwner(rec OwnerRecord) {
	m.mu.Lock()
	m.owners[rec.ID] = &rec
	m.mu.Unlock()
}

// PutRoutines seeds the owner's routine list, assigning IDs where missing.
func (m *Memory) PutRoutines(ownerID string, items []routine.Routine) {
	m.mu.Lock()
	cp := make([]routine.Routine, len(items))
	copy(cp, items)
	for i := range cp {
		if cp[i].ID == "" {
			cp[i].ID = uuid.NewString()
		}
		cp[i].OwnerID = ownerID
	}
	m.routines[ownerID] = cp
	m.mu.Unlock()
}

// FailWith makes every subsequent call return err. Pass nil to recover.
func (m *Memory) FailWith(err error) {
	m.mu.Lock()
	m.err = err
	m.mu.Unlock()
}

func (m *Memory) FetchOwnerRecord(_ context.Context, ownerID string) (*OwnerRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	rec, ok := m.owners[ownerID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

func (m *Memory) QueryOwnedRoutines(_ context.Context, ownerID string, limit int) ([]routine.Routine, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	items := make([]routine.Routine, len(m.routines[ownerID]))
	copy(items, m.routines[ownerID])
	routine.SortNewestFirst(items)
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}
