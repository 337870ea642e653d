package store

import (
	"context"
	"strings"
	"sync"
)

var _ Store = (*MemoryStore)(nil)

// MemoryStore is an in-process Store used by tests and local development.
// Values are copied on the way in and out so callers cannot alias the
// stored bytes.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]map[string][]byte // actorID -> key -> value
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]map[string][]byte)}
}

func (s *MemoryStore) Get(_ context.Context, actorID, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[actorID][key]
	if !ok {
		return nil, ErrKeyNotFound
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

func (s *MemoryStore) Put(_ context.Context, actorID, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.data[actorID]
	if !ok {
		m = make(map[string][]byte)
		s.data[actorID] = m
	}
	cp := make([]byte, len(value))
	copy(cp, value)
	m[key] = cp
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, actorID, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data[actorID], key)
	return nil
}

func (s *MemoryStore) List(_ context.Context, actorID, prefix string) (map[string][]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string][]byte)
	for k, v := range s.data[actorID] {
		if strings.HasPrefix(k, prefix) {
			cp := make([]byte, len(v))
			copy(cp, v)
			out[k] = cp
		}
	}
	return out, nil
}
