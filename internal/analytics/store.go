package analytics

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// MetricsStore is the counter backend used for dashboards.
type MetricsStore interface {
	Increment(ctx context.Context, key string, delta int64) error
	Query(ctx context.Context, key string) (int64, error)
	// Snapshot returns every counter whose key starts with prefix.
	Snapshot(ctx context.Context, prefix string) (map[string]int64, error)
}

// MemoryStore keeps counters in process memory.
type MemoryStore struct {
	mu       sync.RWMutex
	counters map[string]int64
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{counters: make(map[string]int64)}
}

func (s *MemoryStore) Increment(_ context.Context, key string, delta int64) error {
	s.mu.Lock()
	s.counters[key] += delta
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Query(_ context.Context, key string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.counters[key], nil
}

func (s *MemoryStore) Snapshot(_ context.Context, prefix string) (map[string]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]int64)
	for k, v := range s.counters {
		if strings.HasPrefix(k, prefix) {
			out[k] = v
		}
	}
	return out, nil
}

// sortedKeys is used to render deterministic output.
func sortedKeys(m map[string]int64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
