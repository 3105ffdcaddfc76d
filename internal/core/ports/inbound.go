package ports

import (
	"context"

	"github.com/kirillkom/regulations-assistant/internal/core/domain"
)

// KnowledgeRetriever fuses every retrieval strategy for one query.
type KnowledgeRetriever interface {
	Retrieve(ctx context.Context, query string, topK int, filter domain.SearchFilter) (*domain.RetrievalResult, error)
}

// AnswerService turns a user question into a grounded reply.
type AnswerService interface {
	Answer(ctx context.Context, userID, question string) (*domain.Answer, error)
}
