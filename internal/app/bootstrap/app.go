package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/mortgage-ai-platform/internal/affordability"
	"github.com/wolfman30/mortgage-ai-platform/internal/analytics"
	"github.com/wolfman30/mortgage-ai-platform/internal/api/router"
	"github.com/wolfman30/mortgage-ai-platform/internal/chatwoot"
	"github.com/wolfman30/mortgage-ai-platform/internal/compliance"
	appconfig "github.com/wolfman30/mortgage-ai-platform/internal/config"
	"github.com/wolfman30/mortgage-ai-platform/internal/conversation"
	"github.com/wolfman30/mortgage-ai-platform/internal/health"
	"github.com/wolfman30/mortgage-ai-platform/internal/http/handlers"
	httpmiddleware "github.com/wolfman30/mortgage-ai-platform/internal/http/middleware"
	"github.com/wolfman30/mortgage-ai-platform/internal/leads"
	"github.com/wolfman30/mortgage-ai-platform/internal/notify"
	"github.com/wolfman30/mortgage-ai-platform/internal/observability/metrics"
	"github.com/wolfman30/mortgage-ai-platform/internal/persona"
	"github.com/wolfman30/mortgage-ai-platform/internal/reports"
	"github.com/wolfman30/mortgage-ai-platform/pkg/logging"
)

const (
	signatureMaxSkew   = 5 * time.Minute
	memoryEventLogSize = 10_000
)

// App holds every long-lived component of the service. cmd/api serves
// Handler; cmd/conversation-worker only runs workers.
type App struct {
	Config      *appconfig.Config
	Logger      *logging.Logger
	Registry    *prometheus.Registry
	Metrics     *metrics.ChatMetrics
	Redis       *redis.Client
	Pool        *pgxpool.Pool
	AuditDB     *sql.DB
	Leads       *leads.Service
	Recorder    *analytics.Recorder
	Checker     *health.Checker
	RateLimiter *httpmiddleware.RateLimiter

	// Nil when Chatwoot is not configured.
	Processor *conversation.Processor
	Queue     conversation.JobQueue
	Webhook   *handlers.ChatwootWebhookHandler

	handler http.Handler
	closers []io.Closer
}

// Build wires the application from cfg. Optional backends that are not
// configured degrade to in-memory implementations.
func Build(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	a := &App{Config: cfg, Logger: logger}

	awsCfg, err := LoadAWSConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.Redis = BuildRedisClient(ctx, cfg, logger, true)
	if a.Redis != nil {
		a.closers = append(a.closers, a.Redis)
	}
	if a.Pool, err = OpenPostgres(ctx, cfg); err != nil {
		a.Close()
		return nil, err
	}
	if a.AuditDB, err = OpenAuditDB(ctx, cfg); err != nil {
		a.Close()
		return nil, err
	}
	if a.AuditDB != nil {
		a.closers = append(a.closers, a.AuditDB)
	}
	audit := compliance.NewAuditService(a.AuditDB)

	a.Registry = prometheus.NewRegistry()
	a.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	a.Metrics = metrics.NewChatMetrics(a.Registry)

	store := a.buildMetricsStore()
	var eventLog analytics.EventLog = analytics.NewMemoryEventLog(memoryEventLogSize)
	if a.Pool != nil {
		eventLog = analytics.NewPostgresEventLog(a.Pool)
	}
	a.Recorder = analytics.NewRecorder(eventLog, store, logger)
	dashboard := analytics.NewDashboardBuilder(store, eventLog)

	rules := affordability.DefaultRules().WithStressRate(cfg.StressRate)
	selector := persona.NewSelector(cfg.PersonaSeed)
	notifier := notify.NewService(a.buildEmailSender(awsCfg), cfg.AlertEmailTo, logger)

	chat, err := a.buildConversation(ctx, awsCfg, rules, selector, audit)
	if err != nil {
		a.Close()
		return nil, err
	}

	repo, err := a.buildLeadRepository()
	if err != nil {
		a.Close()
		return nil, err
	}
	leadOpts := []leads.ServiceOption{
		leads.WithEventRecorder(a.Recorder),
		leads.WithAudit(audit),
		leads.WithNotifier(notifier),
		leads.WithRules(rules),
	}
	if chat != nil {
		leadOpts = append(leadOpts, leads.WithConversationLinker(conversation.NewLeadLinker(chat.tracker, chat.client, chat.guard, logger)))
	}
	a.Leads = leads.NewService(repo, selector, logger, leadOpts...)

	var archive *reports.Archive
	if cfg.ReportsBucket != "" {
		archive = reports.NewArchive(NewS3Client(awsCfg, cfg), cfg.ReportsBucket, logger)
	}
	fullDisclaimer := compliance.NewDisclaimerService(compliance.DisclaimerConfig{Level: compliance.DisclaimerFull, Enabled: true})

	a.Checker = health.NewChecker(logger, a.probes(chat), health.WithAlerter(notifier, cfg.AlertCooldown))
	a.RateLimiter = httpmiddleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)

	routerCfg := &router.Config{
		Logger:             logger,
		Health:             health.NewHandler(a.Checker),
		Calculator:         affordability.NewHandler(rules, a.Metrics, logger),
		Leads:              leads.NewHandler(a.Leads, logger),
		Analytics:          analytics.NewHandler(a.Recorder, dashboard, logger),
		Reports:            reports.NewHandler(reports.NewBuilder(rules, selector, fullDisclaimer), archive, a.Recorder, logger),
		MetricsHandler:     promhttp.HandlerFor(a.Registry, promhttp.HandlerOpts{Registry: a.Registry}),
		RateLimiter:        a.RateLimiter,
		AdminAuthSecret:    cfg.AdminJWTSecret,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
	}
	if a.Webhook != nil {
		routerCfg.ChatwootWebhook = a.Webhook
	}
	a.handler = router.New(routerCfg)
	return a, nil
}

// Handler returns the HTTP handler for the API server.
func (a *App) Handler() http.Handler {
	return a.handler
}

// NewWorker returns a queue consumer, or nil when Chatwoot is not configured.
func (a *App) NewWorker(opts ...conversation.WorkerOption) *conversation.Worker {
	if a.Processor == nil || a.Queue == nil {
		return nil
	}
	return conversation.NewWorker(a.Processor, a.Queue, a.Logger, opts...)
}

// Shutdown drains detached webhook work and releases connections.
func (a *App) Shutdown(ctx context.Context) {
	if a.Webhook != nil {
		if err := a.Webhook.Wait(ctx); err != nil {
			a.Logger.Warn("detached webhook work did not finish", "error", err)
		}
	}
	a.Close()
}

// Close releases connections without waiting for in-flight work.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			a.Logger.Warn("close failed", "error", err)
		}
	}
	a.closers = nil
	if a.Pool != nil {
		a.Pool.Close()
		a.Pool = nil
	}
}

// chatComponents are shared between the processor and the lead linker so a
// form submission and a chat message see the same conversation state.
type chatComponents struct {
	client  *chatwoot.Client
	tracker *conversation.Tracker
	guard   *conversation.ReplyGuard
}

func (a *App) buildConversation(ctx context.Context, awsCfg aws.Config, rules affordability.Rules, selector *persona.Selector, audit *compliance.AuditService) (*chatComponents, error) {
	cfg, logger := a.Config, a.Logger
	if !cfg.ChatwootConfigured() {
		logger.Warn("chatwoot not configured; webhook routes disabled")
		return nil, nil
	}
	client, err := chatwoot.New(chatwoot.Config{
		BaseURL:    cfg.ChatwootBaseURL,
		APIToken:   cfg.ChatwootAPIToken,
		AccountID:  cfg.ChatwootAccountID,
		Timeout:    cfg.ChatwootTimeout,
		MaxRetries: cfg.ChatwootMaxRetries,
		Logger:     logger,
	})
	if err != nil {
		return nil, fmt.Errorf("bootstrap: chatwoot client: %w", err)
	}

	llm, err := BuildLLMClient(ctx, cfg, awsCfg, logger, conversation.WithLLMObserver(a.Metrics))
	if err != nil {
		return nil, err
	}
	if closer, ok := llm.(io.Closer); ok {
		a.closers = append(a.closers, closer)
	}

	state, err := BuildStateStore(cfg, a.Redis, awsCfg, logger)
	if err != nil {
		return nil, err
	}
	tracker := conversation.NewTracker(state, logger)
	guard := conversation.NewReplyGuard(BuildProcessedStore(a.Pool, a.Redis))

	classifier := conversation.NewIntentClassifier(llm, cfg.LLMFastModel, logger, a.Metrics)
	responder := conversation.NewResponder(llm, conversation.ModelConfig{
		Fast:      cfg.LLMFastModel,
		Reasoning: cfg.LLMReasoningModel,
	}, rules, compliance.NewDisclaimerService(compliance.DefaultDisclaimerConfig()), logger)

	a.Processor = conversation.NewProcessor(tracker, classifier, responder, selector, client, logger,
		conversation.WithReplyGuard(guard),
		conversation.WithEventRecorder(a.Recorder),
		conversation.WithAudit(audit),
		conversation.WithMetrics(a.Metrics),
	)

	if a.Queue, err = BuildQueue(cfg, awsCfg); err != nil {
		return nil, err
	}
	verifier := chatwoot.NewSignatureVerifier(cfg.ChatwootWebhookSecret, signatureMaxSkew)
	if cfg.ChatwootWebhookSecret == "" {
		logger.Warn("CHATWOOT_WEBHOOK_SECRET not set; webhook signatures are not verified")
	}
	a.Webhook = handlers.NewChatwootWebhookHandler(verifier, conversation.NewPublisher(a.Queue, logger), a.Processor, a.Metrics, logger)

	return &chatComponents{client: client, tracker: tracker, guard: guard}, nil
}

func (a *App) buildMetricsStore() analytics.MetricsStore {
	switch strings.ToLower(a.Config.MetricsBackend) {
	case "redis":
		if a.Redis != nil {
			return analytics.NewRedisStore(a.Redis)
		}
		a.Logger.Warn("METRICS_BACKEND=redis but redis is unavailable; using memory")
	case "prometheus":
		return analytics.NewPrometheusStore(a.Registry)
	}
	return analytics.NewMemoryStore()
}

func (a *App) buildLeadRepository() (leads.Repository, error) {
	if a.Pool == nil {
		a.Logger.Warn("DATABASE_URL not set; leads are kept in memory")
		return leads.NewInMemoryRepository(), nil
	}
	var sealer *leads.Sealer
	if a.Config.EncryptionEnabled {
		s, err := leads.NewSealer(a.Config.EncryptionKey)
		if err != nil {
			return nil, fmt.Errorf("bootstrap: lead sealer: %w", err)
		}
		sealer = s
	}
	return leads.NewPostgresRepository(a.Pool, sealer), nil
}

func (a *App) buildEmailSender(awsCfg aws.Config) notify.EmailSender {
	cfg := a.Config
	switch strings.ToLower(cfg.EmailProvider) {
	case "sendgrid":
		if s := notify.NewSendGridSender(notify.SendGridConfig{
			APIKey:    cfg.SendGridAPIKey,
			FromEmail: cfg.EmailFrom,
			FromName:  cfg.EmailFromName,
		}, a.Logger); s != nil {
			return s
		}
		a.Logger.Warn("EMAIL_PROVIDER=sendgrid but SENDGRID_API_KEY is empty; alerts are logged only")
	case "ses":
		return notify.NewSESSender(sesv2.NewFromConfig(awsCfg), notify.SESConfig{
			FromEmail: cfg.EmailFrom,
			FromName:  cfg.EmailFromName,
		}, a.Logger)
	}
	return notify.NewLogSender(a.Logger)
}

func (a *App) probes(chat *chatComponents) []health.Probe {
	var probes []health.Probe
	if a.Pool != nil {
		probes = append(probes, health.PingProbe("postgres", true, a.Pool))
	}
	if a.Redis != nil {
		critical := strings.EqualFold(a.Config.StateBackend, "redis")
		probes = append(probes, health.Probe{Name: "redis", Critical: critical, Check: func(ctx context.Context) error {
			return a.Redis.Ping(ctx).Err()
		}})
	}
	if a.AuditDB != nil {
		probes = append(probes, health.Probe{Name: "audit_db", Check: a.AuditDB.PingContext})
	}
	if chat != nil {
		probes = append(probes, health.PingProbe("chatwoot", false, chat.client))
	}
	return probes
}
