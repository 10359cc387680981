package events

import (
	"context"
	"sync"
)

// MemoryStore is a process-local Store for tests and single-instance runs.
type MemoryStore struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{seen: make(map[string]struct{})}
}

func memoryKey(provider, eventID string) string { return provider + "\x00" + eventID }

func (s *MemoryStore) AlreadyProcessed(_ context.Context, provider, eventID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.seen[memoryKey(provider, eventID)]
	return ok, nil
}

func (s *MemoryStore) MarkProcessed(_ context.Context, provider, eventID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := memoryKey(provider, eventID)
	if _, ok := s.seen[key]; ok {
		return false, nil
	}
	s.seen[key] = struct{}{}
	return true, nil
}

func (s *MemoryStore) Forget(_ context.Context, provider, eventID string) error {
	s.mu.Lock()
	delete(s.seen, memoryKey(provider, eventID))
	s.mu.Unlock()
	return nil
}
