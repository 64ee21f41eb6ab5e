package cache

import (
	"context"
	"strings"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/liftlog/routinecache/eventing"
)

// ChangeSignal is the payload exchanged between contexts when a cache key
// changes. Origin carries the writer's context identity so a context never
// reacts to its own writes, mirroring how the store's native change events
// only fire in other contexts.
type ChangeSignal struct {
	Key     string `msgpack:"key"`
	Origin  string `msgpack:"origin"`
	Cleared bool   `msgpack:"cleared"`
}

// publishChange announces a committed write to other contexts. Failures
// are logged and swallowed: the local write already succeeded and the
// notifier is advisory, not a consistency mechanism.
func (s *Service) publishChange(key string) {
	if s.bus == nil {
		return
	}
	payload, err := msgpack.Marshal(ChangeSignal{Key: key, Origin: s.origin})
	if err != nil {
		s.log.Warn("failed to marshal change signal for %s: %s", key, err)
		return
	}
	if err := s.bus.Publish(context.Background(), ChangeSubject, payload); err != nil {
		s.log.Warn("failed to publish change signal for %s: %s", key, err)
	}
}

// Init starts listening for change signals from other contexts. It is
// idempotent: a second call is a no-op and never double-subscribes. Without
// a bus it does nothing.
func (s *Service) Init(ctx context.Context) error {
	if s.bus == nil {
		return nil
	}
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()
	if s.notifySub != nil {
		return nil
	}
	sub, err := s.bus.Subscribe(ctx, ChangeSubject, s.onChangeSignal)
	if err != nil {
		return err
	}
	s.notifySub = sub
	return nil
}

// Close stops listening for change signals. The service remains usable;
// only cross-context events stop.
func (s *Service) Close() error {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()
	if s.notifySub == nil {
		return nil
	}
	err := s.notifySub.Close()
	s.notifySub = nil
	return err
}

func (s *Service) onChangeSignal(_ context.Context, msg eventing.Message) {
	var sig ChangeSignal
	if err := msgpack.Unmarshal(msg.Data(), &sig); err != nil {
		s.log.Warn("failed to decode change signal: %s", err)
		return
	}
	if sig.Cleared {
		// No automatic refetch on a full clear; pages decide what to reload.
		s.log.Info("shared store was cleared by another context")
		return
	}
	if sig.Origin == s.origin {
		return
	}
	var kind EventKind
	var prefix string
	switch {
	case strings.HasPrefix(sig.Key, PrefixOwnedRoutines):
		kind, prefix = OwnedRoutinesChangedExternally, PrefixOwnedRoutines
	case strings.HasPrefix(sig.Key, PrefixSharedRoutines):
		kind, prefix = SharedRoutinesChangedExternally, PrefixSharedRoutines
	case strings.HasPrefix(sig.Key, PrefixPreferences):
		kind, prefix = PreferencesChangedExternally, PrefixPreferences
	default:
		return
	}
	s.emit(Event{Kind: kind, OwnerID: strings.TrimPrefix(sig.Key, prefix), Key: sig.Key})
}
