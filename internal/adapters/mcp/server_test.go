package mcpadapter

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/kirillkom/regulations-assistant/internal/core/domain"
)

type stubRetriever struct {
	result *domain.RetrievalResult
	gotK   int
}

func (s *stubRetriever) Retrieve(ctx context.Context, query string, topK int, filter domain.SearchFilter) (*domain.RetrievalResult, error) {
	s.gotK = topK
	return s.result, nil
}

type stubCatalog struct {
	docs    []domain.DocumentInfo
	content map[string]string
}

func (s *stubCatalog) ListDocuments() []domain.DocumentInfo { return s.docs }

func (s *stubCatalog) DocumentContent(docID string) (string, error) {
	content, ok := s.content[docID]
	if !ok {
		return "", domain.ErrDocumentNotFound
	}
	return content, nil
}

func toolRequest(args map[string]any) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	if len(res.Content) == 0 {
		t.Fatal("empty tool result")
	}
	text, ok := mcp.AsTextContent(res.Content[0])
	if !ok {
		t.Fatalf("unexpected content type %T", res.Content[0])
	}
	return text.Text
}

func newTestServer(retriever *stubRetriever) *Server {
	catalog := &stubCatalog{
		docs:    []domain.DocumentInfo{{ID: "noi_quy", Title: "Nội quy lao động", Description: "quy định nội bộ"}},
		content: map[string]string{"noi_quy": "# Nội quy lao động"},
	}
	return NewServer(retriever, catalog, "test", slog.New(slog.NewJSONHandler(io.Discard, nil)))
}

func TestSearchRegulationsTool(t *testing.T) {
	retriever := &stubRetriever{result: &domain.RetrievalResult{
		Chunks: []domain.KnowledgeChunk{{
			Content:  "12 ngày phép/năm",
			Source:   "Quy định - Điều 5",
			Metadata: map[string]string{domain.MetaSourceType: "entity"},
			Score:    0.7,
		}},
		TotalFound: 1,
	}}
	s := newTestServer(retriever)

	res, err := s.searchRegulations(context.Background(), toolRequest(map[string]any{
		"query": "nghỉ phép", "top_k": float64(3),
	}))
	if err != nil {
		t.Fatalf("tool: %v", err)
	}
	text := resultText(t, res)
	if !strings.Contains(text, "Thông tin tham khảo") || !strings.Contains(text, "12 ngày phép/năm") {
		t.Errorf("text = %q", text)
	}
	if retriever.gotK != 3 {
		t.Errorf("top_k = %d", retriever.gotK)
	}
}

func TestSearchRegulationsToolEmptyResult(t *testing.T) {
	s := newTestServer(&stubRetriever{result: &domain.RetrievalResult{}})

	res, err := s.searchRegulations(context.Background(), toolRequest(map[string]any{"query": "ngoài phạm vi"}))
	if err != nil {
		t.Fatalf("tool: %v", err)
	}
	if !strings.Contains(resultText(t, res), "Không tìm thấy thông tin") {
		t.Error("not-found reply missing")
	}
}

func TestSearchRegulationsToolRequiresQuery(t *testing.T) {
	s := newTestServer(&stubRetriever{})

	res, err := s.searchRegulations(context.Background(), toolRequest(map[string]any{}))
	if err != nil {
		t.Fatalf("tool: %v", err)
	}
	if !res.IsError {
		t.Error("missing query must produce a tool error")
	}
}

func TestListAndGetDocumentTools(t *testing.T) {
	s := newTestServer(&stubRetriever{})

	res, err := s.listDocuments(context.Background(), toolRequest(nil))
	if err != nil {
		t.Fatalf("list tool: %v", err)
	}
	if !strings.Contains(resultText(t, res), "noi_quy: Nội quy lao động") {
		t.Errorf("list = %q", resultText(t, res))
	}

	res, err = s.getDocument(context.Background(), toolRequest(map[string]any{"doc_id": "noi_quy"}))
	if err != nil {
		t.Fatalf("get tool: %v", err)
	}
	if !strings.Contains(resultText(t, res), "# Nội quy lao động") {
		t.Errorf("content = %q", resultText(t, res))
	}

	res, err = s.getDocument(context.Background(), toolRequest(map[string]any{"doc_id": "missing"}))
	if err != nil {
		t.Fatalf("get tool: %v", err)
	}
	if !res.IsError {
		t.Error("unknown doc must produce a tool error")
	}
}
