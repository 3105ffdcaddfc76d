package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/kirillkom/regulations-assistant/internal/core/domain"
)

type fakeRetriever struct {
	result *domain.RetrievalResult
	err    error
}

func (f *fakeRetriever) Retrieve(ctx context.Context, query string, topK int, filter domain.SearchFilter) (*domain.RetrievalResult, error) {
	return f.result, f.err
}

type fakeGenerator struct {
	reply      string
	err        error
	gotContext string
	calls      int
}

func (f *fakeGenerator) GenerateAnswer(ctx context.Context, question, contextBlock string) (string, error) {
	f.calls++
	f.gotContext = contextBlock
	return f.reply, f.err
}

type fakeExchangeStore struct {
	appended []domain.Exchange
	err      error
}

func (f *fakeExchangeStore) AppendExchange(ctx context.Context, ex domain.Exchange) error {
	if f.err != nil {
		return f.err
	}
	f.appended = append(f.appended, ex)
	return nil
}

func (f *fakeExchangeStore) ListRecentExchanges(ctx context.Context, userID string, limit int) ([]domain.Exchange, error) {
	return f.appended, nil
}

func leaveChunk() domain.KnowledgeChunk {
	return domain.KnowledgeChunk{
		Content: "Người lao động được nghỉ 12 ngày phép/năm.",
		Source:  "Quy định - Điều 5",
		Metadata: map[string]string{
			domain.MetaDocID:      "noi_quy",
			domain.MetaSourceType: string(domain.SourceTree),
		},
		Score: 0.9,
	}
}

func TestAnswerGeneratesFromRetrievedContext(t *testing.T) {
	retriever := &fakeRetriever{result: &domain.RetrievalResult{
		Chunks: []domain.KnowledgeChunk{leaveChunk()}, Query: "phép", TotalFound: 1,
	}}
	generator := &fakeGenerator{reply: "Bạn được nghỉ 12 ngày phép mỗi năm."}
	store := &fakeExchangeStore{}
	uc := NewAnswerUseCase(retriever, generator, store, func() bool { return false }, 5, discardLogger())

	answer, err := uc.Answer(context.Background(), "u1", "nghỉ phép được bao nhiêu ngày")
	if err != nil {
		t.Fatalf("answer: %v", err)
	}
	if answer.Reply != "Bạn được nghỉ 12 ngày phép mỗi năm." {
		t.Errorf("reply = %q", answer.Reply)
	}
	if answer.Degraded {
		t.Error("degraded must be false")
	}
	if !strings.Contains(generator.gotContext, "### Thông tin tham khảo (1 nguồn):") {
		t.Errorf("context header missing: %q", generator.gotContext)
	}
	if !strings.Contains(generator.gotContext, "12 ngày phép/năm") {
		t.Errorf("context missing chunk content: %q", generator.gotContext)
	}
	if len(store.appended) != 1 {
		t.Fatalf("exchanges appended = %d", len(store.appended))
	}
	ex := store.appended[0]
	if ex.UserID != "u1" || ex.Question != "nghỉ phép được bao nhiêu ngày" {
		t.Errorf("exchange = %+v", ex)
	}
	if len(ex.Sources) != 1 || ex.Sources[0][domain.MetaDocID] != "noi_quy" {
		t.Errorf("exchange sources = %v", ex.Sources)
	}
}

func TestAnswerEmptyRetrievalSkipsGeneration(t *testing.T) {
	retriever := &fakeRetriever{result: &domain.RetrievalResult{Query: "x", TotalFound: 0}}
	generator := &fakeGenerator{}
	uc := NewAnswerUseCase(retriever, generator, &fakeExchangeStore{}, func() bool { return true }, 5, discardLogger())

	answer, err := uc.Answer(context.Background(), "u1", "câu hỏi ngoài phạm vi")
	if err != nil {
		t.Fatalf("answer: %v", err)
	}
	if answer.Reply != NotFoundReply {
		t.Errorf("reply = %q", answer.Reply)
	}
	if !answer.Degraded {
		t.Error("degraded must be true")
	}
	if generator.calls != 0 {
		t.Errorf("generator called %d times", generator.calls)
	}
}

func TestAnswerRejectsEmptyQuestion(t *testing.T) {
	uc := NewAnswerUseCase(&fakeRetriever{}, &fakeGenerator{}, &fakeExchangeStore{}, func() bool { return false }, 5, discardLogger())

	_, err := uc.Answer(context.Background(), "u1", "   ")
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestAnswerSurvivesExchangeStoreFailure(t *testing.T) {
	retriever := &fakeRetriever{result: &domain.RetrievalResult{
		Chunks: []domain.KnowledgeChunk{leaveChunk()}, Query: "phép", TotalFound: 1,
	}}
	store := &fakeExchangeStore{err: errors.New("db down")}
	uc := NewAnswerUseCase(retriever, &fakeGenerator{reply: "ok"}, store, func() bool { return false }, 5, discardLogger())

	answer, err := uc.Answer(context.Background(), "u1", "nghỉ phép")
	if err != nil {
		t.Fatalf("persistence failure must not fail the answer: %v", err)
	}
	if answer.Reply != "ok" {
		t.Errorf("reply = %q", answer.Reply)
	}
}

func TestAnswerPropagatesGenerationFailure(t *testing.T) {
	retriever := &fakeRetriever{result: &domain.RetrievalResult{
		Chunks: []domain.KnowledgeChunk{leaveChunk()}, Query: "phép", TotalFound: 1,
	}}
	generator := &fakeGenerator{err: errors.New("model overloaded")}
	uc := NewAnswerUseCase(retriever, generator, &fakeExchangeStore{}, func() bool { return false }, 5, discardLogger())

	_, err := uc.Answer(context.Background(), "u1", "nghỉ phép")
	if !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected temporary error, got %v", err)
	}
}
