package analytics

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const redisCountersKey = "analytics:counters"

// RedisStore keeps counters in a single Redis hash so every API instance
// shares them.
type RedisStore struct {
	client *redis.Client
	key    string
	tracer trace.Tracer
}

// NewRedisStore creates a Redis-backed metrics store.
func NewRedisStore(client *redis.Client) *RedisStore {
	if client == nil {
		panic("analytics: redis client cannot be nil")
	}
	return &RedisStore{
		client: client,
		key:    redisCountersKey,
		tracer: otel.Tracer("mortgage.internal.analytics.redis"),
	}
}

func (s *RedisStore) Increment(ctx context.Context, key string, delta int64) error {
	ctx, span := s.tracer.Start(ctx, "analytics.increment")
	defer span.End()
	if err := s.client.HIncrBy(ctx, s.key, key, delta).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("analytics: increment %s: %w", key, err)
	}
	return nil
}

func (s *RedisStore) Query(ctx context.Context, key string) (int64, error) {
	v, err := s.client.HGet(ctx, s.key, key).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("analytics: query %s: %w", key, err)
	}
	return v, nil
}

func (s *RedisStore) Snapshot(ctx context.Context, prefix string) (map[string]int64, error) {
	ctx, span := s.tracer.Start(ctx, "analytics.snapshot")
	defer span.End()
	raw, err := s.client.HGetAll(ctx, s.key).Result()
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("analytics: snapshot: %w", err)
	}
	out := make(map[string]int64, len(raw))
	for k, v := range raw {
		if !strings.HasPrefix(k, prefix) {
			continue
		}
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			continue
		}
		out[k] = n
	}
	return out, nil
}
