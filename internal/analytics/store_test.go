package analytics

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*redis.Client, func()) {
	mr, err := miniredis.Run()
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	return client, func() {
		client.Close()
		mr.Close()
	}
}

func exerciseStore(t *testing.T, store MetricsStore) {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, store.Increment(ctx, "event:form_submitted", 1))
	require.NoError(t, store.Increment(ctx, "event:form_submitted", 2))
	require.NoError(t, store.Increment(ctx, "persona:grace-lim", 1))

	v, err := store.Query(ctx, "event:form_submitted")
	require.NoError(t, err)
	assert.Equal(t, int64(3), v)

	missing, err := store.Query(ctx, "event:page_view")
	require.NoError(t, err)
	assert.Zero(t, missing)

	snap, err := store.Snapshot(ctx, "event:")
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"event:form_submitted": 3}, snap)

	all, err := store.Snapshot(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore())
}

func TestRedisStore(t *testing.T) {
	client, cleanup := setupTestRedis(t)
	defer cleanup()
	exerciseStore(t, NewRedisStore(client))
}

func TestPrometheusStore(t *testing.T) {
	reg := prometheus.NewRegistry()
	store := NewPrometheusStore(reg)
	exerciseStore(t, store)

	assert.Error(t, store.Increment(context.Background(), "event:x", -1))

	families, err := reg.Gather()
	require.NoError(t, err)
	require.Len(t, families, 1)
	assert.Equal(t, "mortgage_analytics_events_total", families[0].GetName())
}
