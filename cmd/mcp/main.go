package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	mcpadapter "github.com/kirillkom/regulations-assistant/internal/adapters/mcp"
	"github.com/kirillkom/regulations-assistant/internal/bootstrap"
	"github.com/kirillkom/regulations-assistant/internal/config"
	"github.com/kirillkom/regulations-assistant/internal/observability/logging"
)

const version = "0.1.0"

// Stdout carries the MCP protocol, so all logging goes to stderr.
func main() {
	cfg := config.Load()
	logger := logging.NewJSONLoggerTo(os.Stderr, "regulations-mcp", cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.NewRetrieval(ctx, cfg, logger, nil)
	if err != nil {
		logger.Error("bootstrap failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	status := app.Status()
	logger.Info("mcp server starting",
		"mode", status.Mode,
		"trees", status.TreeCount,
		"entities", status.EntityCount,
		"documents", status.DocumentCount,
	)

	srv := mcpadapter.NewServer(app.RetrieveUC, app.Keyword, version, logger)
	if err := srv.ServeStdio(); err != nil {
		logger.Error("mcp server stopped", "error", err)
		os.Exit(1)
	}
}
