package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpadapter "github.com/kirillkom/regulations-assistant/internal/adapters/http"
	"github.com/kirillkom/regulations-assistant/internal/bootstrap"
	"github.com/kirillkom/regulations-assistant/internal/config"
	"github.com/kirillkom/regulations-assistant/internal/observability/logging"
)

func main() {
	cfg := config.Load()
	logger := logging.NewJSONLogger("regulations-api", cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("bootstrap failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	limiter := httpadapter.NewRateLimiter(cfg.APIRateLimitRPS, cfg.APIRateLimitBurst)
	router := httpadapter.NewRouter(app.RetrieveUC, app.AnswerUC, app.Keyword, app.Exchanges, app.Status, limiter)

	apiServer := &http.Server{
		Addr:         ":" + cfg.APIPort,
		Handler:      app.Metrics.Middleware("api", router.Handler()),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", app.Metrics.Handler())
	metricsServer := &http.Server{
		Addr:        ":" + cfg.MetricsPort,
		Handler:     metricsMux,
		ReadTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("metrics listening", "port", cfg.MetricsPort)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server failed", "error", err)
		}
	}()
	go func() {
		status := app.Status()
		logger.Info("api listening",
			"port", cfg.APIPort,
			"mode", status.Mode,
			"trees", status.TreeCount,
			"entities", status.EntityCount,
			"documents", status.DocumentCount,
		)
		if err := apiServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("api server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("api shutdown failed", "error", err)
	}
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("metrics shutdown failed", "error", err)
	}
}
