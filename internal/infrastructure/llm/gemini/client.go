// Package gemini adapts the Gemini API as both the tree reasoning
// service and the answer generator.
package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/kirillkom/regulations-assistant/internal/core/domain"
	"github.com/kirillkom/regulations-assistant/internal/infrastructure/resilience"
)

type Config struct {
	APIKey string
	Model  string
}

// Client holds two model handles over one connection: a JSON-mode model
// for node selection and a plain one for answer generation.
type Client struct {
	client    *genai.Client
	jsonModel *genai.GenerativeModel
	textModel *genai.GenerativeModel
	executor  *resilience.Executor
	logger    *slog.Logger
}

func NewClient(ctx context.Context, cfg Config, executor *resilience.Executor, logger *slog.Logger) (*Client, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	jsonModel := client.GenerativeModel(cfg.Model)
	jsonModel.ResponseMIMEType = "application/json"
	textModel := client.GenerativeModel(cfg.Model)

	return &Client{
		client:    client,
		jsonModel: jsonModel,
		textModel: textModel,
		executor:  executor,
		logger:    logger,
	}, nil
}

func (c *Client) Close() error {
	return c.client.Close()
}

// SelectNodes asks the model to pick the most relevant outline nodes.
// The model runs in JSON mode, but fenced or prefixed output is still
// tolerated before parsing.
func (c *Client) SelectNodes(ctx context.Context, outline, query string, maxNodes int) ([]domain.NodeRef, error) {
	prompt := navigationPrompt(outline, query, maxNodes)

	raw, err := c.generate(ctx, "gemini_select_nodes", c.jsonModel, prompt)
	if err != nil {
		return nil, err
	}

	refs, err := parseNodeRefs(raw)
	if err != nil {
		return nil, domain.WrapError(domain.ErrTemporary, "parse node selection", err)
	}
	if len(refs) > maxNodes {
		refs = refs[:maxNodes]
	}
	return refs, nil
}

func (c *Client) GenerateAnswer(ctx context.Context, question, contextBlock string) (string, error) {
	prompt := answerPrompt(question, contextBlock)
	reply, err := c.generate(ctx, "gemini_generate_answer", c.textModel, prompt)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(reply), nil
}

func (c *Client) generate(ctx context.Context, operation string, model *genai.GenerativeModel, prompt string) (string, error) {
	var text string
	err := c.executor.Execute(ctx, operation, func(ctx context.Context) error {
		resp, err := model.GenerateContent(ctx, genai.Text(prompt))
		if err != nil {
			return err
		}
		text, err = responseText(resp)
		return err
	}, classifyGeminiError)
	if err != nil {
		return "", wrapTemporaryIfNeeded(operation, err)
	}
	return text, nil
}

func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("empty model response")
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			b.WriteString(string(t))
		}
	}
	if b.Len() == 0 {
		return "", fmt.Errorf("model response has no text parts")
	}
	return b.String(), nil
}

func parseNodeRefs(raw string) ([]domain.NodeRef, error) {
	cleaned := stripCodeFence(raw)
	cleaned = extractJSONArray(cleaned)

	var refs []domain.NodeRef
	if err := json.Unmarshal([]byte(cleaned), &refs); err != nil {
		return nil, fmt.Errorf("decode node references: %w", err)
	}
	out := refs[:0]
	for _, ref := range refs {
		if ref.DocumentID == "" || ref.NodeID == "" {
			continue
		}
		out = append(out, ref)
	}
	return out, nil
}

func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// extractJSONArray trims any prose surrounding the outermost array.
func extractJSONArray(s string) string {
	start := strings.Index(s, "[")
	end := strings.LastIndex(s, "]")
	if start >= 0 && end > start {
		return s[start : end+1]
	}
	return s
}
