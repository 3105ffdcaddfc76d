package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/regulations-assistant/internal/core/domain"
	"github.com/kirillkom/regulations-assistant/internal/core/ports"
)

// NotFoundReply is returned verbatim when retrieval surfaces nothing, so
// the model is never asked to answer without grounding.
const NotFoundReply = "Không tìm thấy thông tin liên quan trong các quy định của công ty."

// AnswerUseCase retrieves grounding passages, generates a reply and
// records the exchange. Persistence is best effort; a storage failure
// never loses the answer.
type AnswerUseCase struct {
	retriever ports.KnowledgeRetriever
	generator ports.AnswerGenerator
	exchanges ports.ExchangeStore
	degraded  func() bool
	topK      int
	logger    *slog.Logger
}

func NewAnswerUseCase(
	retriever ports.KnowledgeRetriever,
	generator ports.AnswerGenerator,
	exchanges ports.ExchangeStore,
	degraded func() bool,
	topK int,
	logger *slog.Logger,
) *AnswerUseCase {
	if topK <= 0 {
		topK = defaultTopK
	}
	return &AnswerUseCase{
		retriever: retriever,
		generator: generator,
		exchanges: exchanges,
		degraded:  degraded,
		topK:      topK,
		logger:    logger,
	}
}

func (uc *AnswerUseCase) Answer(ctx context.Context, userID, question string) (*domain.Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "answer question", fmt.Errorf("empty question"))
	}

	result, err := uc.retriever.Retrieve(ctx, question, uc.topK, domain.SearchFilter{})
	if err != nil {
		return nil, domain.WrapError(domain.ErrTemporary, "answer question", err)
	}

	answer := &domain.Answer{Degraded: uc.degraded()}
	if len(result.Chunks) == 0 {
		answer.Reply = NotFoundReply
	} else {
		reply, err := uc.generator.GenerateAnswer(ctx, question, FormatContext(result.Chunks))
		if err != nil {
			return nil, domain.WrapError(domain.ErrTemporary, "generate answer", err)
		}
		answer.Reply = reply
		answer.Sources = result.Chunks
	}

	uc.recordExchange(ctx, userID, question, answer)
	return answer, nil
}

func (uc *AnswerUseCase) recordExchange(ctx context.Context, userID, question string, answer *domain.Answer) {
	sources := make([]map[string]string, 0, len(answer.Sources))
	for _, chunk := range answer.Sources {
		sources = append(sources, chunk.Metadata)
	}
	ex := domain.Exchange{
		ID:        uuid.NewString(),
		UserID:    userID,
		Question:  question,
		Answer:    answer.Reply,
		Sources:   sources,
		Degraded:  answer.Degraded,
		CreatedAt: time.Now().UTC(),
	}
	if err := uc.exchanges.AppendExchange(ctx, ex); err != nil {
		uc.logger.Warn("recording exchange failed", "user_id", userID, "error", err)
	}
}

// FormatContext renders chunks as the reference block handed to the
// generator and to tool consumers.
func FormatContext(chunks []domain.KnowledgeChunk) string {
	var b strings.Builder
	fmt.Fprintf(&b, "### Thông tin tham khảo (%d nguồn):\n", len(chunks))
	for i, chunk := range chunks {
		fmt.Fprintf(&b, "\n[%d] %s\n%s\n", i+1, chunk.Source, chunk.Content)
	}
	return b.String()
}
