package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port        string
	Env         string
	LogLevel    string
	DatabaseURL string

	// Chatwoot
	ChatwootBaseURL       string
	ChatwootAPIToken      string
	ChatwootAccountID     int64
	ChatwootWebhookSecret string
	ChatwootTimeout       time.Duration
	ChatwootMaxRetries    int

	// Conversation state and job queue
	StateBackend           string
	ConversationStateTable string
	StateTTL               time.Duration
	QueueBackend           string
	ConversationQueueURL   string
	WorkerCount            int

	// LLM providers
	LLMProvider         string
	LLMFallbackProvider string
	AnthropicAPIKey     string
	AnthropicModel      string
	BedrockModelID      string
	GeminiAPIKey        string
	GeminiModel         string
	LLMFastModel        string
	LLMReasoningModel   string
	LLMTimeout          time.Duration

	// Calculator
	StressRate  float64
	PersonaSeed int64

	// Redis
	RedisAddr     string
	RedisPassword string
	RedisTLS      bool

	// AWS
	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string
	ReportsBucket       string

	// Feature flags
	AuditLogEnabled   bool
	EncryptionEnabled bool
	EncryptionKey     string
	MetricsBackend    string

	// HTTP surface
	AdminJWTSecret     string
	CORSAllowedOrigins []string
	RateLimitRPS       float64
	RateLimitBurst     int

	// Alerts
	EmailProvider  string
	SendGridAPIKey string
	EmailFrom      string
	EmailFromName  string
	AlertEmailTo   []string
	AlertCooldown  time.Duration
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:        getEnv("PORT", "8080"),
		Env:         getEnv("ENV", "development"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		DatabaseURL: getEnv("DATABASE_URL", ""),

		ChatwootBaseURL:       strings.TrimRight(getEnv("CHATWOOT_BASE_URL", "https://app.chatwoot.com"), "/"),
		ChatwootAPIToken:      getEnv("CHATWOOT_API_TOKEN", ""),
		ChatwootAccountID:     getEnvAsInt64("CHATWOOT_ACCOUNT_ID", 0),
		ChatwootWebhookSecret: getEnv("CHATWOOT_WEBHOOK_SECRET", ""),
		ChatwootTimeout:       getEnvAsDuration("CHATWOOT_TIMEOUT", 10*time.Second),
		ChatwootMaxRetries:    getEnvAsInt("CHATWOOT_MAX_RETRIES", 3),

		StateBackend:           strings.ToLower(getEnv("STATE_BACKEND", "memory")),
		ConversationStateTable: getEnv("CONVERSATION_STATE_TABLE", "conversation_state"),
		StateTTL:               getEnvAsDuration("STATE_TTL", 7*24*time.Hour),
		QueueBackend:           strings.ToLower(getEnv("QUEUE_BACKEND", "memory")),
		ConversationQueueURL:   getEnv("CONVERSATION_QUEUE_URL", ""),
		WorkerCount:            getEnvAsInt("WORKER_COUNT", 2),

		LLMProvider:         strings.ToLower(getEnv("LLM_PROVIDER", "none")),
		LLMFallbackProvider: strings.ToLower(getEnv("LLM_FALLBACK_PROVIDER", "")),
		AnthropicAPIKey:     getEnv("ANTHROPIC_API_KEY", ""),
		AnthropicModel:      getEnv("ANTHROPIC_MODEL", "claude-3-5-haiku-latest"),
		BedrockModelID:      getEnv("BEDROCK_MODEL_ID", ""),
		GeminiAPIKey:        getEnv("GEMINI_API_KEY", ""),
		GeminiModel:         getEnv("GEMINI_MODEL", "gemini-1.5-flash"),
		LLMFastModel:        getEnv("LLM_FAST_MODEL", "fast"),
		LLMReasoningModel:   getEnv("LLM_REASONING_MODEL", "reasoning"),
		LLMTimeout:          getEnvAsDuration("LLM_TIMEOUT", 8*time.Second),

		StressRate:  getEnvAsFloat("STRESS_RATE", 0),
		PersonaSeed: getEnvAsInt64("PERSONA_SEED", 0),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),

		AWSRegion:           getEnv("AWS_REGION", "ap-southeast-1"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),
		ReportsBucket:       getEnv("REPORTS_BUCKET", ""),

		AuditLogEnabled:   getEnvAsBool("AUDIT_LOG_ENABLED", false),
		EncryptionEnabled: getEnvAsBool("ENCRYPTION_ENABLED", false),
		EncryptionKey:     getEnv("ENCRYPTION_KEY", ""),
		MetricsBackend:    strings.ToLower(getEnv("METRICS_BACKEND", "memory")),

		AdminJWTSecret:     getEnv("ADMIN_JWT_SECRET", ""),
		CORSAllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		RateLimitRPS:       getEnvAsFloat("RATE_LIMIT_RPS", 10),
		RateLimitBurst:     getEnvAsInt("RATE_LIMIT_BURST", 20),

		EmailProvider:  strings.ToLower(getEnv("EMAIL_PROVIDER", "sendgrid")),
		SendGridAPIKey: getEnv("SENDGRID_API_KEY", ""),
		EmailFrom:      getEnv("EMAIL_FROM", ""),
		EmailFromName:  getEnv("EMAIL_FROM_NAME", "Mortgage Desk"),
		AlertEmailTo:   getEnvAsList("ALERT_EMAIL_TO", nil),
		AlertCooldown:  getEnvAsDuration("ALERT_COOLDOWN", 15*time.Minute),
	}
}

// ChatwootConfigured reports whether outbound Chatwoot calls can be made.
func (c *Config) ChatwootConfigured() bool {
	return c.ChatwootAPIToken != "" && c.ChatwootAccountID > 0
}

// IsProduction reports whether ENV names a production deployment.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production") || strings.EqualFold(c.Env, "prod")
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	if value, err := strconv.Atoi(getEnv(key, "")); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value, err := strconv.ParseInt(getEnv(key, ""), 10, 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value, err := strconv.ParseFloat(getEnv(key, ""), 64); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	if value, err := strconv.ParseBool(getEnv(key, "")); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsList splits a comma separated variable, dropping blanks.
func getEnvAsList(key string, defaultValue []string) []string {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
