package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kirillkom/regulations-assistant/internal/config"
	"github.com/kirillkom/regulations-assistant/internal/core/domain"
	"github.com/kirillkom/regulations-assistant/internal/core/ports"
	"github.com/kirillkom/regulations-assistant/internal/core/usecase"
	"github.com/kirillkom/regulations-assistant/internal/infrastructure/artifact"
	"github.com/kirillkom/regulations-assistant/internal/infrastructure/keyword"
	"github.com/kirillkom/regulations-assistant/internal/infrastructure/llm/gemini"
	"github.com/kirillkom/regulations-assistant/internal/infrastructure/queue/nats"
	"github.com/kirillkom/regulations-assistant/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/regulations-assistant/internal/infrastructure/resilience"
	"github.com/kirillkom/regulations-assistant/internal/observability/metrics"
)

type App struct {
	Config  config.Config
	Metrics *metrics.ServerMetrics

	Entities *artifact.EntityStore
	Trees    *artifact.TreeStore
	Keyword  *keyword.Provider
	Stores   *artifact.Stores

	RetrieveUC *usecase.RetrieveUseCase
	AnswerUC   *usecase.AnswerUseCase
	Exchanges  ports.ExchangeStore
	Queue      *nats.Queue

	llm     *gemini.Client
	logger  *slog.Logger
	closeFn func()
}

// New wires the full API stack: knowledge stores, retrieval, the answer
// pipeline with exchange history, metrics, and the rebuild subscription.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	m := metrics.NewServerMetrics("api")
	app, err := NewRetrieval(ctx, cfg, logger, m.Observer("api"))
	if err != nil {
		return nil, err
	}
	app.Metrics = m

	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	exchanges := postgres.NewExchangeRepository(db)
	if err := exchanges.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		app.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	queue, err := nats.New(cfg.NATSURL, cfg.NATSSubject)
	if err != nil {
		_ = db.Close()
		app.Close()
		return nil, fmt.Errorf("init message queue: %w", err)
	}
	unsubscribe, err := queue.SubscribeKnowledgeRebuilt(func(reason string) {
		logger.Info("knowledge rebuilt, reloading snapshots", "reason", reason)
		app.Stores.ReloadAll()
		m.RecordReload("api")
	})
	if err != nil {
		queue.Close()
		_ = db.Close()
		app.Close()
		return nil, fmt.Errorf("subscribe rebuild events: %w", err)
	}

	app.AnswerUC = usecase.NewAnswerUseCase(
		app.RetrieveUC,
		app.llm,
		exchanges,
		app.RetrieveUC.Degraded,
		cfg.RetrievalTopK,
		logger,
	)
	app.Exchanges = exchanges
	app.Queue = queue

	closeRetrieval := app.closeFn
	app.closeFn = func() {
		unsubscribe()
		queue.Close()
		_ = db.Close()
		closeRetrieval()
	}
	return app, nil
}

// NewRetrieval wires only the knowledge stores and the retrieval pipeline.
// The MCP binary uses it to avoid dragging in postgres and NATS.
func NewRetrieval(ctx context.Context, cfg config.Config, logger *slog.Logger, observer ports.RetrievalObserver) (*App, error) {
	entities, err := artifact.NewEntityStore(cfg.EntityPath)
	if err != nil {
		return nil, fmt.Errorf("load entity artifacts: %w", err)
	}
	trees, err := artifact.NewTreeStore(cfg.TreeIndexPath, logger)
	if err != nil {
		return nil, fmt.Errorf("load tree artifacts: %w", err)
	}
	kw, err := keyword.NewProvider(cfg.KnowledgePath, logger)
	if err != nil {
		return nil, fmt.Errorf("load keyword index: %w", err)
	}
	triggers, err := artifact.LoadTriggers(cfg.TriggerPath)
	if err != nil {
		return nil, fmt.Errorf("load trigger rules: %w", err)
	}

	executor := resilience.NewExecutor(resilience.GeminiConfig())
	llm, err := gemini.NewClient(ctx, gemini.Config{APIKey: cfg.GeminiAPIKey, Model: cfg.GeminiModel}, executor, logger)
	if err != nil {
		return nil, fmt.Errorf("init gemini client: %w", err)
	}

	matcher := usecase.NewEntityMatcher(cfg.EntityScoreThreshold, triggers)
	navigator := usecase.NewTreeNavigator(
		llm,
		trees,
		time.Duration(cfg.NavigatorTimeoutSeconds)*time.Second,
		cfg.NavigatorMaxNodes,
		logger,
	)

	return &App{
		Config:     cfg,
		Entities:   entities,
		Trees:      trees,
		Keyword:    kw,
		Stores:     artifact.NewStores(logger, entities, trees, kw),
		RetrieveUC: usecase.NewRetrieveUseCase(entities, trees, matcher, navigator, kw, observer, logger),
		llm:        llm,
		logger:     logger,
		closeFn:    func() { _ = llm.Close() },
	}, nil
}

// Status summarizes the active knowledge snapshots.
func (a *App) Status() domain.KnowledgeStatus {
	mode := "fused"
	if a.RetrieveUC.Degraded() {
		mode = "degraded"
	}
	return domain.KnowledgeStatus{
		TreeCount:     len(a.Trees.Trees()),
		TreeNodeCount: a.Trees.NodeCount(),
		EntityCount:   a.Entities.EntityCount(),
		DocumentCount: a.Keyword.DocumentCount(),
		Mode:          mode,
	}
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
