package leads

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type pgxQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresRepository stores snapshots in lead_snapshots. Profiles are kept as
// JSON, sealed with the configured Sealer when encryption is on.
type PostgresRepository struct {
	db     pgxQuerier
	sealer *Sealer
}

// NewPostgresRepository initializes a repo backed by pgxpool. sealer may be nil.
func NewPostgresRepository(pool *pgxpool.Pool, sealer *Sealer) *PostgresRepository {
	if pool == nil {
		panic("leads: pgx pool required")
	}
	return &PostgresRepository{db: pool, sealer: sealer}
}

func newPostgresRepositoryWithDB(db pgxQuerier, sealer *Sealer) *PostgresRepository {
	return &PostgresRepository{db: db, sealer: sealer}
}

const leadColumns = `id, lead_key, version, profile, sealed, score, category, breakdown, persona_id, created_at`

// Save inserts the next version for the lead key in a single statement.
// UNIQUE (lead_key, version) rejects a concurrent writer.
func (r *PostgresRepository) Save(ctx context.Context, lead *Lead) (*Lead, error) {
	stored := lead.clone()
	stored.ID = uuid.New().String()

	profile, err := r.encodeProfile(stored.Profile)
	if err != nil {
		return nil, err
	}
	breakdown, err := json.Marshal(stored.Score.Breakdown)
	if err != nil {
		return nil, fmt.Errorf("leads: encode breakdown: %w", err)
	}

	query := `
		INSERT INTO lead_snapshots (id, lead_key, version, profile, sealed, score, category, breakdown, persona_id)
		SELECT $1, $2, COALESCE(MAX(version), 0) + 1, $3, $4, $5, $6, $7, $8
		FROM lead_snapshots WHERE lead_key = $2
		RETURNING version, created_at
	`
	if err := r.db.QueryRow(ctx, query,
		stored.ID,
		stored.LeadKey,
		profile,
		r.sealer != nil,
		stored.Score.Value,
		string(stored.Score.Category),
		breakdown,
		stored.PersonaID,
	).Scan(&stored.SnapshotVersion, &stored.CreatedAt); err != nil {
		return nil, fmt.Errorf("leads: insert snapshot: %w", err)
	}
	return stored, nil
}

// GetByID fetches one snapshot.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*Lead, error) {
	query := `SELECT ` + leadColumns + ` FROM lead_snapshots WHERE id = $1`
	return r.scanOne(r.db.QueryRow(ctx, query, id))
}

// Latest returns the highest version for the key.
func (r *PostgresRepository) Latest(ctx context.Context, leadKey string) (*Lead, error) {
	query := `SELECT ` + leadColumns + ` FROM lead_snapshots WHERE lead_key = $1 ORDER BY version DESC LIMIT 1`
	return r.scanOne(r.db.QueryRow(ctx, query, leadKey))
}

// List returns the newest snapshot of each lead.
func (r *PostgresRepository) List(ctx context.Context, filter ListFilter) ([]*Lead, error) {
	filter = filter.normalized()
	query := `
		SELECT ` + leadColumns + ` FROM (
			SELECT DISTINCT ON (lead_key) ` + leadColumns + `
			FROM lead_snapshots
			ORDER BY lead_key, version DESC
		) latest
		WHERE ($1 = '' OR category = $1)
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := r.db.Query(ctx, query, string(filter.Category), filter.Limit, filter.Offset)
	if err != nil {
		return nil, fmt.Errorf("leads: list snapshots: %w", err)
	}
	defer rows.Close()

	out := []*Lead{}
	for rows.Next() {
		lead, err := r.scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, lead)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("leads: iterate snapshots: %w", err)
	}
	return out, nil
}

func (r *PostgresRepository) scanOne(row pgx.Row) (*Lead, error) {
	lead, err := r.scan(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrLeadNotFound
	}
	return lead, err
}

func (r *PostgresRepository) scan(row pgx.Row) (*Lead, error) {
	var (
		lead      Lead
		profile   []byte
		sealed    bool
		category  string
		breakdown []byte
		createdAt time.Time
	)
	if err := row.Scan(
		&lead.ID,
		&lead.LeadKey,
		&lead.SnapshotVersion,
		&profile,
		&sealed,
		&lead.Score.Value,
		&category,
		&breakdown,
		&lead.PersonaID,
		&createdAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("leads: scan snapshot: %w", err)
	}
	lead.Score.Category = Category(category)
	lead.CreatedAt = createdAt
	if len(breakdown) > 0 {
		if err := json.Unmarshal(breakdown, &lead.Score.Breakdown); err != nil {
			return nil, fmt.Errorf("leads: decode breakdown: %w", err)
		}
	}
	p, err := r.decodeProfile(profile, sealed)
	if err != nil {
		return nil, err
	}
	lead.Profile = p
	return &lead, nil
}

func (r *PostgresRepository) encodeProfile(p ApplicantProfile) ([]byte, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("leads: encode profile: %w", err)
	}
	if r.sealer == nil {
		return raw, nil
	}
	return r.sealer.Seal(raw)
}

func (r *PostgresRepository) decodeProfile(raw []byte, sealed bool) (ApplicantProfile, error) {
	var p ApplicantProfile
	if sealed {
		if r.sealer == nil {
			return p, ErrSealedPayload
		}
		opened, err := r.sealer.Open(raw)
		if err != nil {
			return p, err
		}
		raw = opened
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		return p, fmt.Errorf("leads: decode profile: %w", err)
	}
	return p, nil
}
