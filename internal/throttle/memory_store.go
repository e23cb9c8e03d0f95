package throttle

import (
	"context"
	"sync"
)

type MemoryStore struct {
	mu      sync.Mutex
	records map[string]Attempt
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]Attempt)}
}

func (s *MemoryStore) Get(_ context.Context, key string) (Attempt, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, found := s.records[key]
	return rec, found, nil
}

func (s *MemoryStore) Update(_ context.Context, key string, fn UpdateFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, found := s.records[key]
	next, keep := fn(rec, found)

	if keep {
		s.records[key] = next
	} else {
		delete(s.records, key)
	}
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.records, key)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}
