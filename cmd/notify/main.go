// Command notify publishes a knowledge.rebuilt event so running API and
// MCP instances reload their artifact snapshots. The artifact pipeline
// calls it after regenerating trees, entities, or the keyword index.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"time"

	"github.com/kirillkom/regulations-assistant/internal/config"
	"github.com/kirillkom/regulations-assistant/internal/infrastructure/queue/nats"
	"github.com/kirillkom/regulations-assistant/internal/observability/logging"
)

func main() {
	reason := flag.String("reason", "artifact rebuild", "reason recorded with the event")
	flag.Parse()

	cfg := config.Load()
	logger := logging.NewJSONLogger("regulations-notify", cfg.LogLevel)
	slog.SetDefault(logger)

	queue, err := nats.New(cfg.NATSURL, cfg.NATSSubject)
	if err != nil {
		logger.Error("connect to nats failed", "error", err)
		os.Exit(1)
	}
	defer queue.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := queue.PublishKnowledgeRebuilt(ctx, *reason); err != nil {
		logger.Error("publish failed", "subject", cfg.NATSSubject, "error", err)
		os.Exit(1)
	}
	logger.Info("rebuild event published", "subject", cfg.NATSSubject, "reason", *reason)
}
