package analytics

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// EventLog is the append-only store of conversion events.
type EventLog interface {
	Append(ctx context.Context, evt ConversionEvent) error
	// List returns events at or after since, oldest first.
	List(ctx context.Context, since time.Time, limit int) ([]ConversionEvent, error)
}

const defaultMemoryLogCapacity = 10_000

// MemoryEventLog keeps the most recent events in a bounded buffer.
type MemoryEventLog struct {
	mu       sync.RWMutex
	events   []ConversionEvent
	capacity int
}

// NewMemoryEventLog returns a log holding at most capacity events.
func NewMemoryEventLog(capacity int) *MemoryEventLog {
	if capacity <= 0 {
		capacity = defaultMemoryLogCapacity
	}
	return &MemoryEventLog{capacity: capacity}
}

func (l *MemoryEventLog) Append(_ context.Context, evt ConversionEvent) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, evt)
	if over := len(l.events) - l.capacity; over > 0 {
		l.events = append([]ConversionEvent(nil), l.events[over:]...)
	}
	return nil
}

func (l *MemoryEventLog) List(_ context.Context, since time.Time, limit int) ([]ConversionEvent, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]ConversionEvent, 0)
	for _, evt := range l.events {
		if evt.Timestamp.Before(since) {
			continue
		}
		out = append(out, evt)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

type pgxQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PostgresEventLog persists events in conversion_events.
type PostgresEventLog struct {
	db pgxQuerier
}

// NewPostgresEventLog creates a pgx-backed event log.
func NewPostgresEventLog(pool *pgxpool.Pool) *PostgresEventLog {
	if pool == nil {
		panic("analytics: pgx pool required")
	}
	return &PostgresEventLog{db: pool}
}

func newPostgresEventLogWithDB(db pgxQuerier) *PostgresEventLog {
	return &PostgresEventLog{db: db}
}

func (l *PostgresEventLog) Append(ctx context.Context, evt ConversionEvent) error {
	props, err := json.Marshal(evt.Properties)
	if err != nil {
		return fmt.Errorf("analytics: encode properties: %w", err)
	}
	query := `
		INSERT INTO conversion_events (id, event_name, session_id, lead_score, properties, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO NOTHING
	`
	if _, err := l.db.Exec(ctx, query, evt.ID, string(evt.Name), evt.SessionID, evt.LeadScore, props, evt.Timestamp); err != nil {
		return fmt.Errorf("analytics: append event: %w", err)
	}
	return nil
}

func (l *PostgresEventLog) List(ctx context.Context, since time.Time, limit int) ([]ConversionEvent, error) {
	if limit <= 0 {
		limit = defaultMemoryLogCapacity
	}
	query := `
		SELECT id, event_name, session_id, lead_score, properties, occurred_at
		FROM conversion_events
		WHERE occurred_at >= $1
		ORDER BY occurred_at ASC
		LIMIT $2
	`
	rows, err := l.db.Query(ctx, query, since, limit)
	if err != nil {
		return nil, fmt.Errorf("analytics: list events: %w", err)
	}
	defer rows.Close()

	var out []ConversionEvent
	for rows.Next() {
		var (
			evt   ConversionEvent
			name  string
			props []byte
		)
		if err := rows.Scan(&evt.ID, &name, &evt.SessionID, &evt.LeadScore, &props, &evt.Timestamp); err != nil {
			return nil, fmt.Errorf("analytics: scan event: %w", err)
		}
		evt.Name = EventName(name)
		if len(props) > 0 {
			if err := json.Unmarshal(props, &evt.Properties); err != nil {
				return nil, fmt.Errorf("analytics: decode properties: %w", err)
			}
		}
		out = append(out, evt)
	}
	return out, rows.Err()
}
