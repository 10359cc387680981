package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	redisStatePrefix = "conversation:state:"
	defaultStateTTL  = 7 * 24 * time.Hour
)

// RedisStateStore shares conversation state across instances. Updates use
// WATCH/MULTI so concurrent deliveries for one conversation serialize.
type RedisStateStore struct {
	client *redis.Client
	ttl    time.Duration
	tracer trace.Tracer
}

// NewRedisStateStore builds a store. ttl <= 0 uses a 7 day expiry so
// abandoned conversations do not accumulate.
func NewRedisStateStore(client *redis.Client, ttl time.Duration) *RedisStateStore {
	if client == nil {
		panic("conversation: redis client cannot be nil")
	}
	if ttl <= 0 {
		ttl = defaultStateTTL
	}
	return &RedisStateStore{
		client: client,
		ttl:    ttl,
		tracer: otel.Tracer("mortgage.internal.conversation.state"),
	}
}

func redisStateKey(conversationID int64) string {
	return redisStatePrefix + strconv.FormatInt(conversationID, 10)
}

func (s *RedisStateStore) Get(ctx context.Context, conversationID int64) (*State, error) {
	return s.read(ctx, s.client, redisStateKey(conversationID))
}

type redisGetter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func (s *RedisStateStore) read(ctx context.Context, c redisGetter, key string) (*State, error) {
	raw, err := c.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("conversation: redis get %s: %w", key, err)
	}
	var st State
	if err := json.Unmarshal(raw, &st); err != nil {
		return nil, fmt.Errorf("conversation: decode state %s: %w", key, err)
	}
	return &st, nil
}

func (s *RedisStateStore) Update(ctx context.Context, conversationID int64, fn UpdateFunc) (*State, error) {
	ctx, span := s.tracer.Start(ctx, "conversation.state.update")
	defer span.End()

	key := redisStateKey(conversationID)
	var result *State
	txf := func(tx *redis.Tx) error {
		cur, err := s.read(ctx, tx, key)
		if err != nil {
			return err
		}
		next, err := fn(cur)
		if err != nil {
			return err
		}
		if next != nil && next == cur {
			result = cur
			return nil
		}
		if next == nil {
			result = nil
			if cur == nil {
				return nil
			}
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Del(ctx, key)
				return nil
			})
			return err
		}
		next.Version++
		payload, err := json.Marshal(next)
		if err != nil {
			return fmt.Errorf("conversation: encode state: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, payload, s.ttl)
			return nil
		})
		if err == nil {
			out := *next
			result = &out
		}
		return err
	}

	for attempt := 0; attempt < maxCASAttempts; attempt++ {
		err := s.client.Watch(ctx, txf, key)
		if err == nil {
			return result, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "state update failed")
		return nil, err
	}
	span.SetStatus(codes.Error, "state conflict")
	return nil, ErrStateConflict
}

func (s *RedisStateStore) Delete(ctx context.Context, conversationID int64) error {
	if err := s.client.Del(ctx, redisStateKey(conversationID)).Err(); err != nil {
		return fmt.Errorf("conversation: redis delete: %w", err)
	}
	return nil
}
