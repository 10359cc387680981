package events

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultProcessedTTL = 72 * time.Hour

// RedisStore claims ids with SET NX so every instance sees the same claims.
// Entries expire after ttl; replays older than that are not detected.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

var _ Store = (*RedisStore)(nil)

func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	if client == nil {
		panic("events: redis client required")
	}
	if ttl <= 0 {
		ttl = defaultProcessedTTL
	}
	return &RedisStore{client: client, ttl: ttl}
}

func redisKey(provider, eventID string) string {
	return "processed:" + provider + ":" + eventID
}

func (s *RedisStore) AlreadyProcessed(ctx context.Context, provider, eventID string) (bool, error) {
	n, err := s.client.Exists(ctx, redisKey(provider, eventID)).Result()
	if err != nil {
		return false, fmt.Errorf("events: check processed: %w", err)
	}
	return n > 0, nil
}

func (s *RedisStore) MarkProcessed(ctx context.Context, provider, eventID string) (bool, error) {
	ok, err := s.client.SetNX(ctx, redisKey(provider, eventID), time.Now().UTC().Format(time.RFC3339), s.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("events: mark processed: %w", err)
	}
	return ok, nil
}

func (s *RedisStore) Forget(ctx context.Context, provider, eventID string) error {
	if err := s.client.Del(ctx, redisKey(provider, eventID)).Err(); err != nil {
		return fmt.Errorf("events: forget processed: %w", err)
	}
	return nil
}
