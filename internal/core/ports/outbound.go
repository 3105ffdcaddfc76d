package ports

import (
	"context"
	"time"

	"github.com/kirillkom/regulations-assistant/internal/core/domain"
)

// EntityStore exposes the immutable structured-entity snapshot, keyed by
// document id. Snapshots are replaced wholesale on reload.
type EntityStore interface {
	Entities() map[string][]domain.EntityRecord
	Empty() bool
}

// TreeStore exposes the immutable document-outline forest.
type TreeStore interface {
	Trees() map[string]domain.DocumentTree
	Node(docID, nodeID string) (domain.TreeNode, bool)
	Empty() bool
}

// TreeReasoner performs the single external reasoning call of a
// retrieval: given a compacted forest outline, it selects the nodes most
// relevant to the query.
type TreeReasoner interface {
	SelectNodes(ctx context.Context, outline, query string, maxNodes int) ([]domain.NodeRef, error)
}

// AnswerGenerator produces the final reply from the formatted context.
type AnswerGenerator interface {
	GenerateAnswer(ctx context.Context, question, contextBlock string) (string, error)
}

// KeywordSearcher is the lexical fallback over raw document text. It owns
// its native scoring; callers rescale when fusing with other strategies.
type KeywordSearcher interface {
	Search(query string, topK int, filter domain.SearchFilter) *domain.RetrievalResult
	Empty() bool
}

// DocumentCatalog lists the corpus and serves full document text.
type DocumentCatalog interface {
	ListDocuments() []domain.DocumentInfo
	DocumentContent(docID string) (string, error)
}

// ExchangeStore persists answered questions for audit.
type ExchangeStore interface {
	AppendExchange(ctx context.Context, ex domain.Exchange) error
	ListRecentExchanges(ctx context.Context, userID string, limit int) ([]domain.Exchange, error)
}

// MessageQueue carries knowledge-rebuild notifications between the
// offline pipeline and running instances.
type MessageQueue interface {
	PublishKnowledgeRebuilt(ctx context.Context, reason string) error
	SubscribeKnowledgeRebuilt(handler func(reason string)) (func(), error)
	Close()
}

// RetrievalObserver receives retrieval telemetry. Implementations must be
// cheap; the use case calls them inline.
type RetrievalObserver interface {
	ObserveStrategy(strategy string, chunks int)
	ObserveStrategyFailure(strategy string)
	ObserveRetrieval(degraded bool, elapsed time.Duration)
}
