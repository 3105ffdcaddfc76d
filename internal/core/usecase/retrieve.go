package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/kirillkom/regulations-assistant/internal/core/domain"
	"github.com/kirillkom/regulations-assistant/internal/core/ports"
)

const (
	defaultTopK        = 5
	keywordMultiplier  = 0.7
	keywordSupplements = 2
)

// RetrieveUseCase fuses the three retrieval strategies into one ranked
// result. Entity matching runs synchronously, tree navigation runs in
// its own goroutine since it carries the only external call, and the
// keyword fallback supplements the merged set last.
type RetrieveUseCase struct {
	entities  ports.EntityStore
	trees     ports.TreeStore
	matcher   *EntityMatcher
	navigator *TreeNavigator
	keyword   ports.KeywordSearcher
	observer  ports.RetrievalObserver
	logger    *slog.Logger
}

func NewRetrieveUseCase(
	entities ports.EntityStore,
	trees ports.TreeStore,
	matcher *EntityMatcher,
	navigator *TreeNavigator,
	keyword ports.KeywordSearcher,
	observer ports.RetrievalObserver,
	logger *slog.Logger,
) *RetrieveUseCase {
	return &RetrieveUseCase{
		entities:  entities,
		trees:     trees,
		matcher:   matcher,
		navigator: navigator,
		keyword:   keyword,
		observer:  observer,
		logger:    logger,
	}
}

// Degraded reports whether every structured store is empty, leaving only
// the keyword fallback.
func (uc *RetrieveUseCase) Degraded() bool {
	return uc.entities.Empty() && uc.trees.Empty()
}

func (uc *RetrieveUseCase) Retrieve(ctx context.Context, query string, topK int, filter domain.SearchFilter) (*domain.RetrievalResult, error) {
	if topK <= 0 {
		topK = defaultTopK
	}
	start := time.Now()

	if uc.Degraded() {
		result := uc.keyword.Search(query, topK, filter)
		uc.observe(string(domain.SourceKeyword), len(result.Chunks))
		uc.observeRetrieval(true, start)
		return result, nil
	}

	treeCh := make(chan []domain.KnowledgeChunk, 1)
	go func() {
		treeCh <- uc.navigator.Navigate(ctx, query, filter)
	}()

	entityChunks := uc.matcher.Match(query, uc.entities.Entities(), filter)
	uc.observe(string(domain.SourceEntity), len(entityChunks))

	var treeChunks []domain.KnowledgeChunk
	select {
	case treeChunks = <-treeCh:
		uc.observe(string(domain.SourceTree), len(treeChunks))
	case <-ctx.Done():
		// Partial results are valid; the pending reasoning call is
		// already cancelled through the shared context.
		uc.observeFailure(string(domain.SourceTree))
		uc.logger.Warn("retrieval deadline expired before tree navigation", "error", ctx.Err())
	}

	chunks := append(treeChunks, entityChunks...)

	supplements := keywordSupplements
	if topK < supplements {
		supplements = topK
	}
	keywordResult := uc.keyword.Search(query, supplements, filter)
	keywordChunks := dedupeAgainst(chunks, keywordResult.Chunks)
	// Keyword scores are only discounted below structured results when
	// a structured strategy actually produced some.
	if len(chunks) > 0 {
		for i := range keywordChunks {
			keywordChunks[i].Score *= keywordMultiplier
		}
	}
	uc.observe(string(domain.SourceKeyword), len(keywordChunks))
	chunks = append(chunks, keywordChunks...)

	sortChunks(chunks)
	total := len(chunks)
	chunks = trimChunks(chunks, topK)

	uc.observeRetrieval(false, start)
	return &domain.RetrievalResult{
		Chunks:     chunks,
		Query:      query,
		TotalFound: total,
	}, nil
}

func (uc *RetrieveUseCase) observe(strategy string, chunks int) {
	if uc.observer != nil {
		uc.observer.ObserveStrategy(strategy, chunks)
	}
}

func (uc *RetrieveUseCase) observeFailure(strategy string) {
	if uc.observer != nil {
		uc.observer.ObserveStrategyFailure(strategy)
	}
}

func (uc *RetrieveUseCase) observeRetrieval(degraded bool, start time.Time) {
	if uc.observer != nil {
		uc.observer.ObserveRetrieval(degraded, time.Since(start))
	}
}
