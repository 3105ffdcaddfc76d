// Package mcpadapter exposes retrieval as tools over the Model Context
// Protocol so desktop agents can query company regulations directly.
package mcpadapter

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kirillkom/regulations-assistant/internal/core/domain"
	"github.com/kirillkom/regulations-assistant/internal/core/ports"
	"github.com/kirillkom/regulations-assistant/internal/core/usecase"
)

type Server struct {
	mcp       *server.MCPServer
	retriever ports.KnowledgeRetriever
	catalog   ports.DocumentCatalog
	logger    *slog.Logger
}

func NewServer(retriever ports.KnowledgeRetriever, catalog ports.DocumentCatalog, version string, logger *slog.Logger) *Server {
	s := &Server{
		mcp:       server.NewMCPServer("regulations-assistant", version),
		retriever: retriever,
		catalog:   catalog,
		logger:    logger,
	}

	s.mcp.AddTool(mcp.NewTool("search_regulations",
		mcp.WithDescription("Tìm kiếm trong các văn bản quy định, quy chế, nội quy của công ty. Trả về các đoạn trích liên quan nhất kèm nguồn."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Câu hỏi hoặc từ khóa cần tra cứu")),
		mcp.WithNumber("top_k", mcp.Description("Số đoạn trích tối đa (mặc định 5)")),
		mcp.WithString("doc_id", mcp.Description("Giới hạn tìm kiếm trong một tài liệu")),
	), s.searchRegulations)

	s.mcp.AddTool(mcp.NewTool("list_regulation_documents",
		mcp.WithDescription("Liệt kê các văn bản quy định hiện có."),
	), s.listDocuments)

	s.mcp.AddTool(mcp.NewTool("get_regulation_document",
		mcp.WithDescription("Lấy toàn văn một văn bản quy định theo id."),
		mcp.WithString("doc_id", mcp.Required(), mcp.Description("Id tài liệu, xem list_regulation_documents")),
	), s.getDocument)

	return s
}

// ServeStdio blocks until the client disconnects.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

func (s *Server) searchRegulations(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	topK := req.GetInt("top_k", 5)
	docID := req.GetString("doc_id", "")

	result, err := s.retriever.Retrieve(ctx, query, topK, domain.SearchFilter{DocID: docID})
	if err != nil {
		s.logger.Error("search tool failed", "error", err)
		return mcp.NewToolResultError(fmt.Sprintf("tra cứu thất bại: %v", err)), nil
	}
	if len(result.Chunks) == 0 {
		return mcp.NewToolResultText(usecase.NotFoundReply), nil
	}
	return mcp.NewToolResultText(usecase.FormatContext(result.Chunks)), nil
}

func (s *Server) listDocuments(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	docs := s.catalog.ListDocuments()
	if len(docs) == 0 {
		return mcp.NewToolResultText("Chưa có văn bản quy định nào được nạp."), nil
	}
	var b strings.Builder
	for _, doc := range docs {
		fmt.Fprintf(&b, "- %s: %s", doc.ID, doc.Title)
		if doc.Description != "" {
			fmt.Fprintf(&b, " (%s)", doc.Description)
		}
		b.WriteString("\n")
	}
	return mcp.NewToolResultText(b.String()), nil
}

func (s *Server) getDocument(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	docID, err := req.RequireString("doc_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	content, err := s.catalog.DocumentContent(docID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("không tìm thấy tài liệu %q", docID)), nil
	}
	return mcp.NewToolResultText(content), nil
}
