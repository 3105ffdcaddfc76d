package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// SourceType labels which retrieval strategy produced a chunk.
type SourceType string

const (
	SourceEntity  SourceType = "entity"
	SourceTree    SourceType = "tree"
	SourceKeyword SourceType = "keyword"
)

// Metadata keys shared by every strategy.
const (
	MetaDocID      = "doc_id"
	MetaSourceType = "source_type"
	MetaNodeID     = "node_id"
	MetaReason     = "reason"
	MetaChunkID    = "chunk_id"
	MetaRuleType   = "rule_type"
	MetaClass      = "entity_class"
)

// EntityRecord is one structured fact extracted verbatim from a source
// document by the offline annotation pipeline. Immutable once loaded.
type EntityRecord struct {
	Class      string     `json:"class"`
	Text       string     `json:"text"`
	Attributes Attributes `json:"attributes"`
	StartPos   *int       `json:"start_pos,omitempty"`
	EndPos     *int       `json:"end_pos,omitempty"`
}

// Attributes is a string map that remembers the key order of the JSON
// object it was decoded from, so rendered context blocks list attributes
// the way the extraction pipeline emitted them.
type Attributes struct {
	keys   []string
	values map[string]string
}

func NewAttributes(pairs ...[2]string) Attributes {
	a := Attributes{values: make(map[string]string, len(pairs))}
	for _, p := range pairs {
		a.Set(p[0], p[1])
	}
	return a
}

func (a *Attributes) Set(key, value string) {
	if a.values == nil {
		a.values = make(map[string]string)
	}
	if _, ok := a.values[key]; !ok {
		a.keys = append(a.keys, key)
	}
	a.values[key] = value
}

func (a Attributes) Get(key string) (string, bool) {
	v, ok := a.values[key]
	return v, ok
}

// Keys returns attribute keys in insertion order. Callers must not mutate
// the returned slice.
func (a Attributes) Keys() []string {
	return a.keys
}

func (a Attributes) Len() int {
	return len(a.keys)
}

func (a *Attributes) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("decode attributes: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("decode attributes: expected object, got %v", tok)
	}

	*a = Attributes{values: make(map[string]string)}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("decode attribute key: %w", err)
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("decode attribute key: %v", keyTok)
		}

		valTok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("decode attribute value for %q: %w", key, err)
		}
		a.Set(key, fmt.Sprint(valTok))
	}
	return nil
}

func (a Attributes) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, key := range a.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(key)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(a.values[key])
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// TreeNode is one level of a document's hierarchical outline. Text may be
// empty on nodes that only serve as structural headers; that is a valid
// permanent state, not a load error.
type TreeNode struct {
	Title    string     `json:"title"`
	NodeID   string     `json:"node_id"`
	Summary  string     `json:"summary"`
	Text     string     `json:"text,omitempty"`
	Children []TreeNode `json:"nodes,omitempty"`
}

// DocumentTree is the precomputed outline of one regulation document.
type DocumentTree struct {
	DocID       string     `json:"doc_id"`
	Name        string     `json:"doc_name"`
	Description string     `json:"doc_description"`
	Structure   []TreeNode `json:"structure"`
}

// NodeRef is one reference returned by the reasoning call over a
// compacted forest.
type NodeRef struct {
	DocumentID string `json:"document_id"`
	NodeID     string `json:"node_id"`
	Reason     string `json:"reason"`
}

// KnowledgeChunk is a scored, provenance-tagged passage. Chunks are
// created fresh per query and never persisted.
type KnowledgeChunk struct {
	Content  string            `json:"content"`
	Source   string            `json:"source"`
	Metadata map[string]string `json:"metadata"`
	Score    float64           `json:"score"`
}

func (c KnowledgeChunk) SourceType() SourceType {
	return SourceType(c.Metadata[MetaSourceType])
}

func (c KnowledgeChunk) DocID() string {
	return c.Metadata[MetaDocID]
}

// RetrievalResult is the fused output for one query. Chunks are sorted by
// score descending and bounded by the requested top-k; TotalFound reports
// the pre-truncation candidate count.
type RetrievalResult struct {
	Chunks     []KnowledgeChunk `json:"chunks"`
	Query      string           `json:"query"`
	TotalFound int              `json:"total_found"`
}

// SearchFilter narrows every retrieval strategy to one document when
// DocID is set. A filter naming an unknown document is not an error; the
// structured strategies simply contribute nothing.
type SearchFilter struct {
	DocID string `json:"doc_id,omitempty"`
}

// TriggerRule maps a query trigger substring to a rule_type substring.
// Matching both sides earns an entity the fixed domain bonus. The table
// is configuration loaded at startup, not code.
type TriggerRule struct {
	Trigger  string `yaml:"trigger" json:"trigger"`
	RuleType string `yaml:"rule_type" json:"rule_type"`
}

// DocumentInfo is a catalog entry for one corpus document.
type DocumentInfo struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// KnowledgeStatus reports which precomputed indexes are active.
type KnowledgeStatus struct {
	TreeCount     int    `json:"tree_count"`
	TreeNodeCount int    `json:"tree_node_count"`
	EntityCount   int    `json:"entity_count"`
	DocumentCount int    `json:"document_count"`
	Mode          string `json:"mode"`
}
