package artifact

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/kirillkom/regulations-assistant/internal/core/domain"
)

const treeFileSuffix = "_tree.json"

// Raw tree files come from the outline generation pipeline, which emits
// either "summary" or "prefix_summary" per node depending on its pass.
type rawTreeNode struct {
	Title         string        `json:"title"`
	NodeID        string        `json:"node_id"`
	Summary       string        `json:"summary"`
	PrefixSummary string        `json:"prefix_summary"`
	Text          string        `json:"text"`
	Nodes         []rawTreeNode `json:"nodes"`
}

type rawTree struct {
	DocName        string        `json:"doc_name"`
	DocDescription string        `json:"doc_description"`
	Structure      []rawTreeNode `json:"structure"`
}

// LoadTrees reads every per-document outline file in dir. The document
// identifier is the file name without the tree suffix. A missing
// directory is not an error; individual malformed files are skipped with
// a warning so one bad artifact cannot take down the whole forest.
func LoadTrees(dir string, logger *slog.Logger) (map[string]domain.DocumentTree, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*"+treeFileSuffix))
	if err != nil {
		return nil, fmt.Errorf("glob tree artifacts in %s: %w", dir, err)
	}
	if _, statErr := os.Stat(dir); errors.Is(statErr, fs.ErrNotExist) {
		return map[string]domain.DocumentTree{}, nil
	}

	trees := make(map[string]domain.DocumentTree, len(matches))
	for _, path := range matches {
		docID := strings.TrimSuffix(filepath.Base(path), treeFileSuffix)
		tree, err := loadTree(path, docID)
		if err != nil {
			logger.Warn("skipping tree artifact", "path", path, "error", err)
			continue
		}
		trees[docID] = tree
	}
	return trees, nil
}

func loadTree(path, docID string) (domain.DocumentTree, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return domain.DocumentTree{}, fmt.Errorf("read: %w", err)
	}
	var decoded rawTree
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return domain.DocumentTree{}, fmt.Errorf("decode: %w", err)
	}

	seen := make(map[string]struct{})
	structure, err := convertNodes(decoded.Structure, seen)
	if err != nil {
		return domain.DocumentTree{}, err
	}
	return domain.DocumentTree{
		DocID:       docID,
		Name:        decoded.DocName,
		Description: decoded.DocDescription,
		Structure:   structure,
	}, nil
}

func convertNodes(nodes []rawTreeNode, seen map[string]struct{}) ([]domain.TreeNode, error) {
	out := make([]domain.TreeNode, 0, len(nodes))
	for _, n := range nodes {
		if n.NodeID == "" {
			return nil, fmt.Errorf("node %q has no node_id", n.Title)
		}
		if _, dup := seen[n.NodeID]; dup {
			return nil, fmt.Errorf("duplicate node_id %q", n.NodeID)
		}
		seen[n.NodeID] = struct{}{}

		summary := n.Summary
		if summary == "" {
			summary = n.PrefixSummary
		}
		children, err := convertNodes(n.Nodes, seen)
		if err != nil {
			return nil, err
		}
		out = append(out, domain.TreeNode{
			Title:    n.Title,
			NodeID:   n.NodeID,
			Summary:  summary,
			Text:     n.Text,
			Children: children,
		})
	}
	return out, nil
}
