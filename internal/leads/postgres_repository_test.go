package leads

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var snapshotColumns = []string{"id", "lead_key", "version", "profile", "sealed", "score", "category", "breakdown", "persona_id", "created_at"}

func TestPostgresRepositorySave(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := newPostgresRepositoryWithDB(mock, nil)
	p := qualifiedProfile()
	score := ScoreProfile(p)
	created := time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC)

	mock.ExpectQuery("INSERT INTO lead_snapshots").
		WithArgs(pgxmock.AnyArg(), p.Key(), pgxmock.AnyArg(), false, score.Value, string(score.Category), pgxmock.AnyArg(), "rachel-tan").
		WillReturnRows(pgxmock.NewRows([]string{"version", "created_at"}).AddRow(3, created))

	lead, err := repo.Save(context.Background(), &Lead{LeadKey: p.Key(), Profile: p, Score: score, PersonaID: "rachel-tan"})
	require.NoError(t, err)
	assert.Equal(t, 3, lead.SnapshotVersion)
	assert.Equal(t, created, lead.CreatedAt)
	assert.NotEmpty(t, lead.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepositoryGetByIDSealed(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	sealer, err := NewSealer(hex.EncodeToString(testKey))
	require.NoError(t, err)
	repo := newPostgresRepositoryWithDB(mock, sealer)

	p := premiumProfile()
	raw, _ := json.Marshal(p)
	sealed, err := sealer.Seal(raw)
	require.NoError(t, err)
	breakdown, _ := json.Marshal(map[string]int{"income": 35})
	created := time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC)

	mock.ExpectQuery("SELECT (.+) FROM lead_snapshots WHERE id").
		WithArgs("lead-1").
		WillReturnRows(pgxmock.NewRows(snapshotColumns).
			AddRow("lead-1", p.Key(), 1, sealed, true, 100, "premium", breakdown, "michelle-chen", created))

	lead, err := repo.GetByID(context.Background(), "lead-1")
	require.NoError(t, err)
	assert.Equal(t, "Alicia Ng", lead.Profile.Name)
	assert.Equal(t, CategoryPremium, lead.Score.Category)
	assert.Equal(t, 35, lead.Score.Breakdown["income"])

	// Without the key a sealed row cannot be read.
	plain := newPostgresRepositoryWithDB(mock, nil)
	mock.ExpectQuery("SELECT (.+) FROM lead_snapshots WHERE id").
		WithArgs("lead-1").
		WillReturnRows(pgxmock.NewRows(snapshotColumns).
			AddRow("lead-1", p.Key(), 1, sealed, true, 100, "premium", breakdown, "michelle-chen", created))
	_, err = plain.GetByID(context.Background(), "lead-1")
	assert.ErrorIs(t, err, ErrSealedPayload)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepositoryNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := newPostgresRepositoryWithDB(mock, nil)
	mock.ExpectQuery("SELECT (.+) FROM lead_snapshots WHERE lead_key").
		WithArgs("nobody").
		WillReturnError(pgx.ErrNoRows)

	_, err = repo.Latest(context.Background(), "nobody")
	assert.ErrorIs(t, err, ErrLeadNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepositoryList(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := newPostgresRepositoryWithDB(mock, nil)
	p := qualifiedProfile()
	raw, _ := json.Marshal(p)
	created := time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC)

	mock.ExpectQuery("SELECT DISTINCT ON").
		WithArgs("qualified", 50, 0).
		WillReturnRows(pgxmock.NewRows(snapshotColumns).
			AddRow("lead-2", p.Key(), 2, raw, false, 69, "qualified", []byte(`{}`), "rachel-tan", created))

	leads, err := repo.List(context.Background(), ListFilter{Category: CategoryQualified})
	require.NoError(t, err)
	require.Len(t, leads, 1)
	assert.Equal(t, 2, leads[0].SnapshotVersion)
	assert.Equal(t, "Daniel Koh", leads[0].Profile.Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}
