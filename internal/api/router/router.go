package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/wolfman30/mortgage-ai-platform/internal/affordability"
	"github.com/wolfman30/mortgage-ai-platform/internal/analytics"
	"github.com/wolfman30/mortgage-ai-platform/internal/health"
	httpmiddleware "github.com/wolfman30/mortgage-ai-platform/internal/http/middleware"
	"github.com/wolfman30/mortgage-ai-platform/internal/leads"
	"github.com/wolfman30/mortgage-ai-platform/internal/reports"
	"github.com/wolfman30/mortgage-ai-platform/pkg/logging"
)

// Config holds router configuration. Nil handlers leave their routes
// unmounted.
type Config struct {
	Logger             *logging.Logger
	Health             *health.Handler
	Calculator         *affordability.Handler
	Leads              *leads.Handler
	Analytics          *analytics.Handler
	Reports            *reports.Handler
	ChatwootWebhook    http.Handler
	MetricsHandler     http.Handler
	RateLimiter        *httpmiddleware.RateLimiter
	AdminAuthSecret    string
	CORSAllowedOrigins []string
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	// Public endpoints (webhooks, health checks)
	r.Group(func(public chi.Router) {
		if cfg.Health != nil {
			public.Get("/health", cfg.Health.Live)
		}
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
		if cfg.ChatwootWebhook != nil {
			public.Post("/webhooks/chatwoot", cfg.ChatwootWebhook.ServeHTTP)
		}
	})

	// Browser-facing API, rate limited per client IP.
	r.Route("/api", func(api chi.Router) {
		if cfg.RateLimiter != nil {
			api.Use(httpmiddleware.RateLimit(cfg.RateLimiter))
		}
		if cfg.Health != nil {
			api.Get("/health", cfg.Health.Report)
		}
		api.Group(func(compressed chi.Router) {
			compressed.Use(middleware.Compress(5, "application/json"))
			if cfg.Calculator != nil {
				compressed.Post("/calculate", cfg.Calculator.Calculate)
			}
			if cfg.Leads != nil {
				compressed.Post("/leads", cfg.Leads.Submit)
			}
			if cfg.Reports != nil {
				compressed.Post("/reports/affordability", cfg.Reports.Generate)
			}
			if cfg.Analytics != nil {
				compressed.Post("/analytics/events", cfg.Analytics.PostEvent)
				compressed.Get("/analytics/dashboard", cfg.Analytics.GetDashboard)
			}
		})
		// The stream hijacks the connection, so it sits outside Compress.
		if cfg.Analytics != nil {
			api.Get("/analytics/stream", cfg.Analytics.Stream)
		}
	})

	// Admin routes carry applicant contact details and require a broker JWT.
	if cfg.AdminAuthSecret != "" && cfg.Leads != nil {
		r.Route("/admin", func(admin chi.Router) {
			admin.Use(httpmiddleware.AdminJWT(cfg.AdminAuthSecret, httpmiddleware.RoleAdmin, httpmiddleware.RoleBroker))
			admin.Get("/leads", cfg.Leads.List)
			admin.Get("/leads/{leadID}", cfg.Leads.Get)
		})
	}

	return r
}
