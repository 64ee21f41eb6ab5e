package cache

// EventKind identifies what changed and where the change happened.
type EventKind int

const (
	// PreferencesUpdated fires after a successful preferences save in this
	// context.
	PreferencesUpdated EventKind = iota
	// RoutinesUpdated fires after a successful routines save (owned or
	// shared, distinguishable by the event key) in this context.
	RoutinesUpdated
	// OwnedRoutinesChangedExternally fires when another context changed an
	// owned-routines key.
	OwnedRoutinesChangedExternally
	// SharedRoutinesChangedExternally fires when another context changed a
	// shared-routines key.
	SharedRoutinesChangedExternally
	// PreferencesChangedExternally fires when another context changed a
	// preferences key.
	PreferencesChangedExternally
)

func (k EventKind) String() string {
	switch k {
	case PreferencesUpdated:
		return "preferencesUpdated"
	case RoutinesUpdated:
		return "routinesUpdated"
	case OwnedRoutinesChangedExternally:
		return "ownedRoutinesChangedExternally"
	case SharedRoutinesChangedExternally:
		return "sharedRoutinesChangedExternally"
	case PreferencesChangedExternally:
		return "preferencesChangedExternally"
	}
	return "unknown"
}

// Event is delivered to subscribers when a cache entry changes. Local
// events arrive synchronously within the emitting call; external events
// arrive asynchronously after the other context's write committed.
type Event struct {
	Kind    EventKind
	OwnerID string
	Key     string
}

// Subscribe registers fn for every event. The returned function removes
// the subscription.
func (s *Service) Subscribe(fn func(Event)) (cancel func()) {
	s.subMu.Lock()
	s.nextSubID++
	id := s.nextSubID
	s.subs[id] = fn
	s.subMu.Unlock()
	return func() {
		s.subMu.Lock()
		delete(s.subs, id)
		s.subMu.Unlock()
	}
}

func (s *Service) emit(e Event) {
	s.subMu.Lock()
	fns := make([]func(Event), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subMu.Unlock()
	for _, fn := range fns {
		fn(e)
	}
}
