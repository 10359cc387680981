package bootstrap

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aws/aws-sdk-go-v2/aws"

	appconfig "github.com/wolfman30/mortgage-ai-platform/internal/config"
	"github.com/wolfman30/mortgage-ai-platform/internal/conversation"
	"github.com/wolfman30/mortgage-ai-platform/internal/events"
	"github.com/wolfman30/mortgage-ai-platform/pkg/logging"
)

func baseConfig() *appconfig.Config {
	return &appconfig.Config{
		Env:          "test",
		AWSRegion:    "ap-southeast-1",
		StateBackend: "memory",
		QueueBackend: "memory",
		StateTTL:     time.Hour,
	}
}

func TestBuildRedisClientDisabledWithoutAddr(t *testing.T) {
	if client := BuildRedisClient(context.Background(), baseConfig(), logging.Discard(), true); client != nil {
		t.Fatalf("expected nil client without REDIS_ADDR")
	}
}

func TestBuildRedisClientVerifiesPing(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := baseConfig()
	cfg.RedisAddr = mr.Addr()

	client := BuildRedisClient(context.Background(), cfg, logging.Discard(), true)
	if client == nil {
		t.Fatalf("expected redis client")
	}
	defer client.Close()

	mr.Close()
	if client := BuildRedisClient(context.Background(), cfg, logging.Discard(), true); client != nil {
		t.Fatalf("expected nil client when ping fails")
	}
}

func TestBuildStateStore(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := baseConfig()
	cfg.RedisAddr = mr.Addr()
	client := BuildRedisClient(context.Background(), cfg, logging.Discard(), false)
	defer client.Close()

	cases := []struct {
		name    string
		backend string
		table   string
		useNil  bool
		want    string
		wantErr bool
	}{
		{name: "default memory", backend: "", want: "*conversation.MemoryStateStore"},
		{name: "redis", backend: "redis", want: "*conversation.RedisStateStore"},
		{name: "redis unavailable", backend: "redis", useNil: true, want: "*conversation.MemoryStateStore"},
		{name: "dynamodb", backend: "dynamodb", table: "conversation-state", want: "*conversation.DynamoStateStore"},
		{name: "dynamodb without table", backend: "dynamodb", wantErr: true},
		{name: "unknown", backend: "etcd", wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := baseConfig()
			c.StateBackend = tc.backend
			c.ConversationStateTable = tc.table
			rc := client
			if tc.useNil {
				rc = nil
			}
			store, err := BuildStateStore(c, rc, aws.Config{Region: c.AWSRegion}, logging.Discard())
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got := typeName(store); got != tc.want {
				t.Fatalf("expected %s, got %s", tc.want, got)
			}
		})
	}
}

func TestBuildQueue(t *testing.T) {
	cfg := baseConfig()
	q, err := BuildQueue(cfg, aws.Config{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := q.(*conversation.MemoryQueue); !ok {
		t.Fatalf("expected memory queue, got %T", q)
	}
	if !IsMemoryQueue(cfg) {
		t.Fatalf("memory backend should be reported")
	}

	cfg.QueueBackend = "sqs"
	if _, err := BuildQueue(cfg, aws.Config{}); err == nil {
		t.Fatalf("expected error without queue url")
	}
	cfg.ConversationQueueURL = "http://localhost:4566/000000000000/conversation-events"
	q, err = BuildQueue(cfg, aws.Config{Region: "ap-southeast-1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := q.(*conversation.SQSQueue); !ok {
		t.Fatalf("expected sqs queue, got %T", q)
	}
	if IsMemoryQueue(cfg) {
		t.Fatalf("sqs backend reported as memory")
	}
}

func TestBuildProcessedStoreFallsBackToMemory(t *testing.T) {
	if _, ok := BuildProcessedStore(nil, nil).(*events.MemoryStore); !ok {
		t.Fatalf("expected memory store")
	}
	mr := miniredis.RunT(t)
	cfg := baseConfig()
	cfg.RedisAddr = mr.Addr()
	client := BuildRedisClient(context.Background(), cfg, logging.Discard(), false)
	defer client.Close()
	if _, ok := BuildProcessedStore(nil, client).(*events.RedisStore); !ok {
		t.Fatalf("expected redis store")
	}
}

func TestBuildLLMClient(t *testing.T) {
	cfg := baseConfig()
	client, err := BuildLLMClient(context.Background(), cfg, aws.Config{}, logging.Discard())
	if err != nil || client != nil {
		t.Fatalf("expected nil client for no provider, got %v %v", client, err)
	}

	cfg.LLMProvider = "anthropic"
	if _, err := BuildLLMClient(context.Background(), cfg, aws.Config{}, logging.Discard()); err == nil {
		t.Fatalf("expected error without anthropic key")
	}

	cfg.AnthropicAPIKey = "test-key"
	client, err = BuildLLMClient(context.Background(), cfg, aws.Config{}, logging.Discard())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := client.(*conversation.AnthropicLLMClient); !ok {
		t.Fatalf("expected anthropic client, got %T", client)
	}

	cfg.LLMFallbackProvider = "bedrock"
	cfg.BedrockModelID = "anthropic.claude-3-haiku-20240307-v1:0"
	client, err = BuildLLMClient(context.Background(), cfg, aws.Config{Region: "ap-southeast-1"}, logging.Discard())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	fallback, ok := client.(*conversation.FallbackLLMClient)
	if !ok {
		t.Fatalf("expected fallback client, got %T", client)
	}
	if got := fallback.Provider(); got != ProviderAnthropic {
		t.Fatalf("expected anthropic primary, got %q", got)
	}

	cfg.LLMProvider = "openai"
	if _, err := BuildLLMClient(context.Background(), cfg, aws.Config{}, logging.Discard()); err == nil {
		t.Fatalf("expected error for unknown provider")
	}
}

func TestBuildLLMClientRequiresConfig(t *testing.T) {
	if _, err := BuildLLMClient(context.Background(), nil, aws.Config{}, logging.Discard()); err == nil {
		t.Fatalf("expected error for nil config")
	}
}

func TestBuildWithoutChatwoot(t *testing.T) {
	app, err := Build(context.Background(), baseConfig(), logging.Discard())
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	defer app.Close()

	if app.Webhook != nil || app.Processor != nil {
		t.Fatalf("conversation pipeline should be disabled")
	}
	if app.NewWorker() != nil {
		t.Fatalf("expected no worker")
	}

	rr := httptest.NewRecorder()
	app.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 from /health, got %d", rr.Code)
	}
	rr = httptest.NewRecorder()
	app.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/webhooks/chatwoot", nil))
	if rr.Code != http.StatusNotFound && rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("webhook route should not be mounted, got %d", rr.Code)
	}
	rr = httptest.NewRecorder()
	app.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected metrics endpoint, got %d", rr.Code)
	}
}

func TestBuildWithChatwoot(t *testing.T) {
	cfg := baseConfig()
	cfg.ChatwootBaseURL = "http://chatwoot.local"
	cfg.ChatwootAPIToken = "token"
	cfg.ChatwootAccountID = 3

	app, err := Build(context.Background(), cfg, logging.Discard())
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	defer app.Close()

	if app.Webhook == nil || app.Processor == nil || app.Queue == nil {
		t.Fatalf("expected conversation pipeline")
	}
	if app.NewWorker(conversation.WithWorkerCount(1)) == nil {
		t.Fatalf("expected worker")
	}

	rr := httptest.NewRecorder()
	app.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/webhooks/chatwoot", nil))
	if rr.Code == http.StatusNotFound {
		t.Fatalf("webhook route should be mounted")
	}
}

func TestBuildRejectsBadBackends(t *testing.T) {
	cfg := baseConfig()
	cfg.ChatwootBaseURL = "http://chatwoot.local"
	cfg.ChatwootAPIToken = "token"
	cfg.ChatwootAccountID = 3
	cfg.QueueBackend = "kafka"

	if _, err := Build(context.Background(), cfg, logging.Discard()); err == nil {
		t.Fatalf("expected error for unknown queue backend")
	}
	if _, err := Build(context.Background(), nil, logging.Discard()); err == nil {
		t.Fatalf("expected error for nil config")
	}
}

func typeName(v any) string {
	switch v.(type) {
	case *conversation.MemoryStateStore:
		return "*conversation.MemoryStateStore"
	case *conversation.RedisStateStore:
		return "*conversation.RedisStateStore"
	case *conversation.DynamoStateStore:
		return "*conversation.DynamoStateStore"
	default:
		return "unknown"
	}
}
