package store

import (
	"sort"
	"strings"
	"sync"
)

type inMemoryStore struct {
	mu    sync.Mutex
	data  map[string][]byte
	used  int64
	cfg   config
	close sync.Once
}

var _ Store = (*inMemoryStore)(nil)

// NewInMemory returns a Store backed by an in-process map. Values are
// copied on write and read so callers cannot mutate stored bytes.
func NewInMemory(opts ...Option) Store {
	return &inMemoryStore{
		data: make(map[string][]byte),
		cfg:  applyOptions(opts),
	}
}

func (s *inMemoryStore) Put(key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delta := int64(len(key) + len(value))
	if old, ok := s.data[key]; ok {
		delta -= int64(len(key) + len(old))
	}
	if s.cfg.maxBytes > 0 && s.used+delta > s.cfg.maxBytes {
		return ErrQuotaExceeded
	}
	cp := make([]byte, len(value))
	copy(cp, value)
	s.data[key] = cp
	s.used += delta
	return nil
}

func (s *inMemoryStore) Get(key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	val, ok := s.data[key]
	if !ok {
		return nil, false, nil
	}
	cp := make([]byte, len(val))
	copy(cp, val)
	return cp, true, nil
}

func (s *inMemoryStore) Delete(key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	val, ok := s.data[key]
	if ok {
		s.used -= int64(len(key) + len(val))
		delete(s.data, key)
	}
	return ok, nil
}

func (s *inMemoryStore) Keys(prefix string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *inMemoryStore) Len() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.data), nil
}

func (s *inMemoryStore) Close() error {
	s.close.Do(func() {
		s.mu.Lock()
		s.data = make(map[string][]byte)
		s.used = 0
		s.mu.Unlock()
	})
	return nil
}
