package reports

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/mortgage-ai-platform/internal/affordability"
	"github.com/wolfman30/mortgage-ai-platform/internal/leads"
	"github.com/wolfman30/mortgage-ai-platform/internal/persona"
	"github.com/wolfman30/mortgage-ai-platform/pkg/logging"
)

type putCall struct {
	bucket string
	key    string
	body   []byte
}

type mockS3 struct {
	mu       sync.Mutex
	puts     []putCall
	objects  map[string][]byte
	putErr   error
	getErr   error
	failKeys map[string]bool
}

func newMockS3() *mockS3 {
	return &mockS3{objects: map[string][]byte{}, failKeys: map[string]bool{}}
}

func (m *mockS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.putErr != nil || m.failKeys[*in.Key] {
		return nil, errors.New("access denied")
	}
	body, _ := io.ReadAll(in.Body)
	m.puts = append(m.puts, putCall{bucket: *in.Bucket, key: *in.Key, body: body})
	m.objects[*in.Key] = body
	return &s3.PutObjectOutput{}, nil
}

func (m *mockS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	data, ok := m.objects[*in.Key]
	if !ok {
		return nil, &s3types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func testReport(id string, at time.Time) *Report {
	return &Report{
		ID:          id,
		GeneratedAt: at,
		Score:       leads.Score{Value: 72, Category: leads.CategoryQualified},
		Persona:     persona.Persona{ID: persona.JasmineLee},
		Calculation: affordability.Result{MaxLoan: 1_125_000, LimitingFactor: affordability.LimitLTV},
	}
}

func TestArchive_Disabled(t *testing.T) {
	var nilArchive *Archive
	assert.False(t, nilArchive.Enabled())

	a := NewArchive(newMockS3(), "", logging.Discard())
	assert.False(t, a.Enabled())
	key, err := a.Store(context.Background(), testReport("r-1", time.Now()))
	require.NoError(t, err)
	assert.Empty(t, key)
}

func TestArchive_StoreWritesReportAndManifest(t *testing.T) {
	mock := newMockS3()
	a := NewArchive(mock, "reports-bucket", logging.Discard())
	at := time.Date(2026, 3, 7, 9, 30, 0, 0, time.UTC)

	key, err := a.Store(context.Background(), testReport("r-1", at))
	require.NoError(t, err)
	assert.Equal(t, "reports/v1/by-date/2026/03/07/r-1.json", key)

	require.Len(t, mock.puts, 2)
	assert.Equal(t, "reports-bucket", mock.puts[0].bucket)

	var stored Report
	require.NoError(t, json.Unmarshal(mock.objects[key], &stored))
	assert.Equal(t, "r-1", stored.ID)
	assert.Equal(t, 72, stored.Score.Value)

	manifest := string(mock.objects["reports/v1/manifests/2026-03.jsonl"])
	var entry ManifestEntry
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(manifest)), &entry))
	assert.Equal(t, ManifestEntry{
		ReportID:       "r-1",
		Key:            key,
		LeadScore:      72,
		LeadCategory:   "qualified",
		PersonaID:      persona.JasmineLee,
		MaxLoan:        1_125_000,
		LimitingFactor: "LTV",
		GeneratedAt:    "2026-03-07T09:30:00Z",
	}, entry)
}

func TestArchive_ManifestAppends(t *testing.T) {
	mock := newMockS3()
	a := NewArchive(mock, "reports-bucket", logging.Discard())
	at := time.Date(2026, 3, 7, 9, 30, 0, 0, time.UTC)

	_, err := a.Store(context.Background(), testReport("r-1", at))
	require.NoError(t, err)
	_, err = a.Store(context.Background(), testReport("r-2", at.Add(48*time.Hour)))
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(mock.objects["reports/v1/manifests/2026-03.jsonl"])), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], `"report_id":"r-1"`)
	assert.Contains(t, lines[1], `"report_id":"r-2"`)
}

func TestArchive_PutFailure(t *testing.T) {
	mock := newMockS3()
	mock.putErr = errors.New("boom")
	a := NewArchive(mock, "reports-bucket", logging.Discard())

	_, err := a.Store(context.Background(), testReport("r-1", time.Now()))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reports: s3 put")
}

func TestArchive_ManifestFailureKeepsReport(t *testing.T) {
	mock := newMockS3()
	mock.getErr = errors.New("throttled")
	a := NewArchive(mock, "reports-bucket", logging.Discard())
	at := time.Date(2026, 3, 7, 9, 30, 0, 0, time.UTC)

	key, err := a.Store(context.Background(), testReport("r-1", at))
	require.NoError(t, err)
	assert.Contains(t, mock.objects, key)
	assert.NotContains(t, mock.objects, "reports/v1/manifests/2026-03.jsonl")
}

func TestIsNotFound(t *testing.T) {
	assert.True(t, isNotFound(&s3types.NoSuchKey{}))
	assert.False(t, isNotFound(errors.New("NoSuchKey")))
}
