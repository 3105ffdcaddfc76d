package artifact

import (
	"log/slog"
	"sync/atomic"

	"github.com/kirillkom/regulations-assistant/internal/core/domain"
)

// EntityStore holds the structured-entity snapshot. Reads never lock;
// Reload swaps the whole snapshot atomically so a reader can never
// observe a half-updated index.
type EntityStore struct {
	path     string
	snapshot atomic.Pointer[map[string][]domain.EntityRecord]
}

func NewEntityStore(path string) (*EntityStore, error) {
	s := &EntityStore{path: path}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *EntityStore) Reload() error {
	entities, err := LoadEntities(s.path)
	if err != nil {
		return err
	}
	s.snapshot.Store(&entities)
	return nil
}

func (s *EntityStore) Entities() map[string][]domain.EntityRecord {
	return *s.snapshot.Load()
}

func (s *EntityStore) Empty() bool {
	return len(s.Entities()) == 0
}

// EntityCount sums record counts across documents.
func (s *EntityStore) EntityCount() int {
	total := 0
	for _, records := range s.Entities() {
		total += len(records)
	}
	return total
}

type nodeKey struct {
	docID  string
	nodeID string
}

type treeSnapshot struct {
	trees map[string]domain.DocumentTree
	nodes map[nodeKey]domain.TreeNode
}

// TreeStore holds the document-outline forest plus a flat node index for
// resolving reasoning-call references without walking the trees.
type TreeStore struct {
	dir      string
	logger   *slog.Logger
	snapshot atomic.Pointer[treeSnapshot]
}

func NewTreeStore(dir string, logger *slog.Logger) (*TreeStore, error) {
	s := &TreeStore{dir: dir, logger: logger}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *TreeStore) Reload() error {
	trees, err := LoadTrees(s.dir, s.logger)
	if err != nil {
		return err
	}
	snap := &treeSnapshot{
		trees: trees,
		nodes: make(map[nodeKey]domain.TreeNode),
	}
	for docID, tree := range trees {
		indexNodes(snap.nodes, docID, tree.Structure)
	}
	s.snapshot.Store(snap)
	return nil
}

func indexNodes(index map[nodeKey]domain.TreeNode, docID string, nodes []domain.TreeNode) {
	for _, n := range nodes {
		index[nodeKey{docID: docID, nodeID: n.NodeID}] = n
		indexNodes(index, docID, n.Children)
	}
}

func (s *TreeStore) Trees() map[string]domain.DocumentTree {
	return s.snapshot.Load().trees
}

func (s *TreeStore) Node(docID, nodeID string) (domain.TreeNode, bool) {
	node, ok := s.snapshot.Load().nodes[nodeKey{docID: docID, nodeID: nodeID}]
	return node, ok
}

func (s *TreeStore) Empty() bool {
	return len(s.Trees()) == 0
}

func (s *TreeStore) NodeCount() int {
	return len(s.snapshot.Load().nodes)
}

// Reloader is anything that can replace its snapshot from disk.
type Reloader interface {
	Reload() error
}

// Stores groups every reloadable snapshot behind one reload entry point.
type Stores struct {
	reloaders []Reloader
	logger    *slog.Logger
}

func NewStores(logger *slog.Logger, reloaders ...Reloader) *Stores {
	return &Stores{reloaders: reloaders, logger: logger}
}

// ReloadAll reloads every store, continuing past individual failures so
// one corrupt artifact does not block the others from refreshing.
func (s *Stores) ReloadAll() {
	for _, r := range s.reloaders {
		if err := r.Reload(); err != nil {
			s.logger.Error("store reload failed", "error", err)
		}
	}
}
