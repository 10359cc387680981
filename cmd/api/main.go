package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/wolfman30/mortgage-ai-platform/internal/app/bootstrap"
	appconfig "github.com/wolfman30/mortgage-ai-platform/internal/config"
	"github.com/wolfman30/mortgage-ai-platform/internal/conversation"
	"github.com/wolfman30/mortgage-ai-platform/pkg/logging"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}
	cfg := appconfig.Load()

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting mortgage-ai-platform API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app, err := bootstrap.Build(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to build application", "error", err)
		os.Exit(1)
	}

	go app.RateLimiter.Run(ctx)
	go monitorHealth(ctx, app, logger, time.Minute)
	worker := setupInlineWorker(ctx, cfg, app, logger)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           app.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}
	cancel()
	waitForInlineWorker(worker, logger)
	app.Shutdown(shutdownCtx)

	logger.Info("server stopped")
}

// setupInlineWorker runs queue consumers inside the API process when the
// queue is in memory, since no other process can see it.
func setupInlineWorker(ctx context.Context, cfg *appconfig.Config, app *bootstrap.App, logger *logging.Logger) *conversation.Worker {
	if !bootstrap.IsMemoryQueue(cfg) {
		return nil
	}
	worker := app.NewWorker(conversation.WithWorkerCount(cfg.WorkerCount))
	if worker == nil {
		return nil
	}
	worker.Start(ctx)
	logger.Info("inline conversation workers started", "count", cfg.WorkerCount)
	return worker
}

func waitForInlineWorker(worker *conversation.Worker, logger *logging.Logger) {
	if worker == nil {
		return
	}
	done := make(chan struct{})
	go func() {
		worker.Wait()
		close(done)
	}()
	select {
	case <-done:
		logger.Info("inline conversation workers stopped")
	case <-time.After(30 * time.Second):
		logger.Error("inline conversation workers did not stop in time")
	}
}

// monitorHealth runs the checker periodically so degradations alert even
// when nobody polls /api/health.
func monitorHealth(ctx context.Context, app *bootstrap.App, logger *logging.Logger, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			report := app.Checker.Run(ctx)
			logger.Debug("health check", "status", report.Status)
		}
	}
}
