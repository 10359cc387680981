package conversation

import (
	"context"
	"sync"
)

// MemoryStateStore keeps state in process memory. Updates for one
// conversation are serialized by a per-key mutex; different conversations
// proceed in parallel.
type MemoryStateStore struct {
	mu     sync.Mutex
	states map[int64]State
	locks  map[int64]*keyLock
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

// NewMemoryStateStore returns an empty store.
func NewMemoryStateStore() *MemoryStateStore {
	return &MemoryStateStore{
		states: make(map[int64]State),
		locks:  make(map[int64]*keyLock),
	}
}

func (s *MemoryStateStore) Get(_ context.Context, conversationID int64) (*State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.states[conversationID]
	if !ok {
		return nil, nil
	}
	return &st, nil
}

func (s *MemoryStateStore) Update(ctx context.Context, conversationID int64, fn UpdateFunc) (*State, error) {
	unlock := s.lock(conversationID)
	defer unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	cur, _ := s.Get(ctx, conversationID)
	next, err := fn(cur)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case next == nil:
		delete(s.states, conversationID)
		return nil, nil
	case next == cur:
		return cur, nil
	}
	next.Version++
	s.states[conversationID] = *next
	out := *next
	return &out, nil
}

func (s *MemoryStateStore) Delete(_ context.Context, conversationID int64) error {
	unlock := s.lock(conversationID)
	defer unlock()
	s.mu.Lock()
	delete(s.states, conversationID)
	s.mu.Unlock()
	return nil
}

// Len reports how many conversations are tracked.
func (s *MemoryStateStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.states)
}

func (s *MemoryStateStore) lock(conversationID int64) func() {
	s.mu.Lock()
	l, ok := s.locks[conversationID]
	if !ok {
		l = &keyLock{}
		s.locks[conversationID] = l
	}
	l.refs++
	s.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		s.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(s.locks, conversationID)
		}
		s.mu.Unlock()
	}
}
