package store

import (
	"context"
	"sync"
)

// MemoryStore is the in-process EventStore used when Redis is not
// configured.
type MemoryStore struct {
	mu     sync.RWMutex
	counts map[string]int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{counts: make(map[string]int64)}
}

func (s *MemoryStore) IncrementEvent(_ context.Context, eventType string) error {
	s.mu.Lock()
	s.counts[eventType]++
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) GetEventCounts(_ context.Context) (map[string]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[string]int64, len(s.counts))
	for k, v := range s.counts {
		counts[k] = v
	}
	return counts, nil
}
