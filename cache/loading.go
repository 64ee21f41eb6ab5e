package cache

// Population markers are advisory, not locks: they stop a page from firing
// the same network population twice in quick succession, and they expire
// after LoadingExpiry so a stuck or failed population never wedges the
// cache for the rest of the session.

// markLoading records op as in-flight. Returns false when op is already
// in-flight and the marker has not expired yet.
func (s *Service) markLoading(op string) bool {
	s.loadMu.Lock()
	defer s.loadMu.Unlock()
	now := s.now()
	if started, ok := s.loading[op]; ok && now.Sub(started) < LoadingExpiry {
		return false
	}
	s.loading[op] = now
	return true
}

// doneLoading clears the in-flight marker for op.
func (s *Service) doneLoading(op string) {
	s.loadMu.Lock()
	delete(s.loading, op)
	s.loadMu.Unlock()
}

// isLoading reports whether op has an unexpired in-flight marker. Expired
// markers are dropped on the way.
func (s *Service) isLoading(op string) bool {
	s.loadMu.Lock()
	defer s.loadMu.Unlock()
	started, ok := s.loading[op]
	if !ok {
		return false
	}
	if s.now().Sub(started) >= LoadingExpiry {
		delete(s.loading, op)
		return false
	}
	return true
}
