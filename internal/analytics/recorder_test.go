package analytics

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wolfman30/mortgage-ai-platform/pkg/logging"
)

func newTestRecorder() (*Recorder, *MemoryEventLog, *MemoryStore) {
	log := NewMemoryEventLog(100)
	store := NewMemoryStore()
	return NewRecorder(log, store, logging.Discard()), log, store
}

func TestRecorderRecordAppendsAndCounts(t *testing.T) {
	rec, log, store := newTestRecorder()
	ctx := context.Background()
	score := 82

	require.NoError(t, rec.Record(ctx, ConversionEvent{
		Name:       EventLeadScored,
		SessionID:  "s1",
		LeadScore:  &score,
		Properties: map[string]any{"category": "premium"},
	}))

	events, err := log.List(ctx, time.Time{}, 0)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.NotEmpty(t, events[0].ID)
	assert.False(t, events[0].Timestamp.IsZero())

	n, _ := store.Query(ctx, "event:lead_scored")
	assert.Equal(t, int64(1), n)
	n, _ = store.Query(ctx, "category:premium")
	assert.Equal(t, int64(1), n)
}

func TestRecorderRejectsUnknownEvent(t *testing.T) {
	rec, _, _ := newTestRecorder()
	assert.Error(t, rec.Record(context.Background(), ConversionEvent{Name: "mystery", SessionID: "s"}))
}

func TestRecordJSONValidation(t *testing.T) {
	rec, _, _ := newTestRecorder()
	ctx := context.Background()

	_, details, err := rec.RecordJSON(ctx, []byte(`{"eventName":"nope","leadScore":140}`))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(details), 3, "expected enum, required sessionId and maximum failures: %v", details)

	evt, details, err := rec.RecordJSON(ctx, []byte(`{"id":"client-chosen","eventName":"page_view","sessionId":"abc","properties":{"path":"/"}}`))
	require.NoError(t, err)
	require.Empty(t, details)
	assert.NotEqual(t, "client-chosen", evt.ID)
	assert.NotEmpty(t, evt.ID)
}

func TestRecordJSONMalformed(t *testing.T) {
	rec, _, _ := newTestRecorder()
	_, _, err := rec.RecordJSON(context.Background(), []byte(`{`))
	assert.Error(t, err)
}

func TestSubscribeReceivesEvents(t *testing.T) {
	rec, _, _ := newTestRecorder()
	ch, cancel := rec.Subscribe()
	defer cancel()

	require.NoError(t, rec.Record(context.Background(), ConversionEvent{Name: EventChatStarted, SessionID: "42"}))
	select {
	case evt := <-ch:
		assert.Equal(t, EventChatStarted, evt.Name)
	case <-time.After(time.Second):
		t.Fatal("expected event on subscription")
	}
	cancel()
	cancel()
}

func TestMemoryEventLogCapacity(t *testing.T) {
	log := NewMemoryEventLog(2)
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		require.NoError(t, log.Append(ctx, ConversionEvent{ID: string(rune('a' + i)), Name: EventPageView, Timestamp: base.Add(time.Duration(i) * time.Minute)}))
	}
	events, err := log.List(ctx, time.Time{}, 0)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "b", events[0].ID)

	recent, err := log.List(ctx, base.Add(2*time.Minute), 0)
	require.NoError(t, err)
	assert.Len(t, recent, 1)
}
