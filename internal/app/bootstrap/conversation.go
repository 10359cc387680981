package bootstrap

import (
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	appconfig "github.com/wolfman30/mortgage-ai-platform/internal/config"
	"github.com/wolfman30/mortgage-ai-platform/internal/conversation"
	"github.com/wolfman30/mortgage-ai-platform/internal/events"
	"github.com/wolfman30/mortgage-ai-platform/pkg/logging"
)

const (
	memoryQueueBuffer = 256
	replyTokenTTL     = 7 * 24 * time.Hour
)

// BuildStateStore selects the conversation state backend from STATE_BACKEND.
// redis falls back to memory when the client is unavailable so a single
// local process still works.
func BuildStateStore(cfg *appconfig.Config, redisClient *redis.Client, awsCfg aws.Config, logger *logging.Logger) (conversation.StateStore, error) {
	if logger == nil {
		logger = logging.Default()
	}
	switch backend := strings.ToLower(strings.TrimSpace(cfg.StateBackend)); backend {
	case "", "memory":
		logger.Info("conversation state backend", "backend", "memory")
		return conversation.NewMemoryStateStore(), nil
	case "redis":
		if redisClient == nil {
			logger.Warn("STATE_BACKEND=redis but redis is unavailable; using memory")
			return conversation.NewMemoryStateStore(), nil
		}
		logger.Info("conversation state backend", "backend", "redis")
		return conversation.NewRedisStateStore(redisClient, cfg.StateTTL), nil
	case "dynamodb":
		if strings.TrimSpace(cfg.ConversationStateTable) == "" {
			return nil, fmt.Errorf("bootstrap: CONVERSATION_STATE_TABLE is required for dynamodb state")
		}
		logger.Info("conversation state backend", "backend", "dynamodb", "table", cfg.ConversationStateTable)
		return conversation.NewDynamoStateStore(dynamodb.NewFromConfig(awsCfg), cfg.ConversationStateTable, cfg.StateTTL, logger), nil
	default:
		return nil, fmt.Errorf("bootstrap: unknown state backend %q", backend)
	}
}

// BuildQueue selects the job queue from QUEUE_BACKEND. The memory queue only
// reaches workers started in the same process.
func BuildQueue(cfg *appconfig.Config, awsCfg aws.Config) (conversation.JobQueue, error) {
	switch backend := strings.ToLower(strings.TrimSpace(cfg.QueueBackend)); backend {
	case "", "memory":
		return conversation.NewMemoryQueue(memoryQueueBuffer), nil
	case "sqs":
		if strings.TrimSpace(cfg.ConversationQueueURL) == "" {
			return nil, fmt.Errorf("bootstrap: CONVERSATION_QUEUE_URL is required for sqs queue")
		}
		return conversation.NewSQSQueue(sqs.NewFromConfig(awsCfg), cfg.ConversationQueueURL), nil
	default:
		return nil, fmt.Errorf("bootstrap: unknown queue backend %q", backend)
	}
}

// BuildProcessedStore picks the idempotency store used for reply tokens:
// Postgres when a pool exists, then Redis, then memory.
func BuildProcessedStore(pool *pgxpool.Pool, redisClient *redis.Client) events.Store {
	switch {
	case pool != nil:
		return events.NewProcessedStore(pool)
	case redisClient != nil:
		return events.NewRedisStore(redisClient, replyTokenTTL)
	default:
		return events.NewMemoryStore()
	}
}

// IsMemoryQueue reports whether workers must run inside the API process.
func IsMemoryQueue(cfg *appconfig.Config) bool {
	backend := strings.ToLower(strings.TrimSpace(cfg.QueueBackend))
	return backend == "" || backend == "memory"
}
