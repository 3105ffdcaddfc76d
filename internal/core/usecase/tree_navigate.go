package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/kirillkom/regulations-assistant/internal/core/domain"
	"github.com/kirillkom/regulations-assistant/internal/core/ports"
)

const (
	treeChunkScore          = 0.9
	defaultNavigatorTimeout = 8 * time.Second
	defaultMaxNodeRefs      = 3
)

// TreeNavigator selects answer passages by running one reasoning call
// over a compacted outline of the whole forest, then resolving the
// returned node references back to full text.
type TreeNavigator struct {
	reasoner ports.TreeReasoner
	store    ports.TreeStore
	timeout  time.Duration
	maxRefs  int
	logger   *slog.Logger
}

func NewTreeNavigator(reasoner ports.TreeReasoner, store ports.TreeStore, timeout time.Duration, maxRefs int, logger *slog.Logger) *TreeNavigator {
	if timeout <= 0 {
		timeout = defaultNavigatorTimeout
	}
	if maxRefs <= 0 {
		maxRefs = defaultMaxNodeRefs
	}
	return &TreeNavigator{reasoner: reasoner, store: store, timeout: timeout, maxRefs: maxRefs, logger: logger}
}

// Navigate never fails a query: reasoning errors and malformed output are
// logged and reported as zero chunks.
func (n *TreeNavigator) Navigate(ctx context.Context, query string, filter domain.SearchFilter) []domain.KnowledgeChunk {
	outline, ok := n.compactForest(filter)
	if !ok {
		return nil
	}

	callCtx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	refs, err := n.reasoner.SelectNodes(callCtx, outline, query, n.maxRefs)
	if err != nil {
		n.logger.Warn("tree navigation failed", "error", err)
		return nil
	}
	if len(refs) > n.maxRefs {
		refs = refs[:n.maxRefs]
	}

	var chunks []domain.KnowledgeChunk
	for _, ref := range refs {
		node, found := n.store.Node(ref.DocumentID, ref.NodeID)
		if !found {
			n.logger.Warn("discarding unknown node reference",
				"doc_id", ref.DocumentID, "node_id", ref.NodeID)
			continue
		}
		if node.Text == "" {
			continue
		}
		chunks = append(chunks, domain.KnowledgeChunk{
			Content: node.Text,
			Source:  fmt.Sprintf("Quy định - %s", node.Title),
			Metadata: map[string]string{
				domain.MetaDocID:      ref.DocumentID,
				domain.MetaNodeID:     ref.NodeID,
				domain.MetaSourceType: string(domain.SourceTree),
				domain.MetaReason:     ref.Reason,
			},
			Score: treeChunkScore,
		})
	}
	return chunks
}

type compactNode struct {
	Title    string        `json:"title"`
	NodeID   string        `json:"node_id"`
	Summary  string        `json:"summary"`
	Children []compactNode `json:"nodes,omitempty"`
}

type compactTree struct {
	DocName        string        `json:"doc_name"`
	DocDescription string        `json:"doc_description"`
	Structure      []compactNode `json:"structure"`
}

// compactForest strips node text from every tree so the reasoning prompt
// stays outline-sized. Returns false when no tree passes the filter.
func (n *TreeNavigator) compactForest(filter domain.SearchFilter) (string, bool) {
	forest := make(map[string]compactTree)
	for docID, tree := range n.store.Trees() {
		if filter.DocID != "" && filter.DocID != docID {
			continue
		}
		forest[docID] = compactTree{
			DocName:        tree.Name,
			DocDescription: tree.Description,
			Structure:      compactNodes(tree.Structure),
		}
	}
	if len(forest) == 0 {
		return "", false
	}
	raw, err := json.Marshal(forest)
	if err != nil {
		n.logger.Warn("compacting tree forest failed", "error", err)
		return "", false
	}
	return string(raw), true
}

func compactNodes(nodes []domain.TreeNode) []compactNode {
	out := make([]compactNode, 0, len(nodes))
	for _, node := range nodes {
		out = append(out, compactNode{
			Title:    node.Title,
			NodeID:   node.NodeID,
			Summary:  node.Summary,
			Children: compactNodes(node.Children),
		})
	}
	return out
}
