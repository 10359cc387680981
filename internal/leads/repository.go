package leads

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Repository stores immutable lead snapshots.
type Repository interface {
	// Save appends a new snapshot, assigning ID, version and timestamp.
	Save(ctx context.Context, lead *Lead) (*Lead, error)
	GetByID(ctx context.Context, id string) (*Lead, error)
	// Latest returns the newest snapshot for a lead key.
	Latest(ctx context.Context, leadKey string) (*Lead, error)
	// List returns the newest snapshot of each lead, newest first.
	List(ctx context.Context, filter ListFilter) ([]*Lead, error)
}

// ListFilter narrows List results.
type ListFilter struct {
	Category Category
	Limit    int
	Offset   int
}

func (f ListFilter) normalized() ListFilter {
	if f.Limit <= 0 || f.Limit > 100 {
		f.Limit = 50
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return f
}

// InMemoryRepository keeps snapshots in process memory.
type InMemoryRepository struct {
	mu    sync.RWMutex
	byID  map[string]*Lead
	byKey map[string][]*Lead
	now   func() time.Time
}

// NewInMemoryRepository creates a new in-memory repository
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		byID:  make(map[string]*Lead),
		byKey: make(map[string][]*Lead),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// Save appends a snapshot.
func (r *InMemoryRepository) Save(ctx context.Context, lead *Lead) (*Lead, error) {
	stored := lead.clone()
	stored.ID = uuid.New().String()

	r.mu.Lock()
	defer r.mu.Unlock()
	stored.SnapshotVersion = len(r.byKey[stored.LeadKey]) + 1
	stored.CreatedAt = r.now()
	r.byID[stored.ID] = stored
	r.byKey[stored.LeadKey] = append(r.byKey[stored.LeadKey], stored)
	return stored.clone(), nil
}

// GetByID retrieves a lead by ID
func (r *InMemoryRepository) GetByID(ctx context.Context, id string) (*Lead, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	lead, ok := r.byID[id]
	if !ok {
		return nil, ErrLeadNotFound
	}
	return lead.clone(), nil
}

// Latest returns the newest snapshot for key.
func (r *InMemoryRepository) Latest(ctx context.Context, leadKey string) (*Lead, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snaps := r.byKey[leadKey]
	if len(snaps) == 0 {
		return nil, ErrLeadNotFound
	}
	return snaps[len(snaps)-1].clone(), nil
}

// List returns the latest snapshot per lead.
func (r *InMemoryRepository) List(ctx context.Context, filter ListFilter) ([]*Lead, error) {
	filter = filter.normalized()

	r.mu.RLock()
	latest := make([]*Lead, 0, len(r.byKey))
	for _, snaps := range r.byKey {
		l := snaps[len(snaps)-1]
		if filter.Category != "" && l.Score.Category != filter.Category {
			continue
		}
		latest = append(latest, l.clone())
	}
	r.mu.RUnlock()

	sort.Slice(latest, func(i, j int) bool {
		if latest[i].CreatedAt.Equal(latest[j].CreatedAt) {
			return latest[i].ID > latest[j].ID
		}
		return latest[i].CreatedAt.After(latest[j].CreatedAt)
	})
	if filter.Offset >= len(latest) {
		return []*Lead{}, nil
	}
	end := filter.Offset + filter.Limit
	if end > len(latest) {
		end = len(latest)
	}
	return latest[filter.Offset:end], nil
}
