// Package keyword is the lexical fallback over raw regulation text. It
// needs no precomputed artifacts beyond the corpus index, so it stays
// available even when the structured stores fail to load.
package keyword

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/ledongthuc/pdf"

	"github.com/kirillkom/regulations-assistant/internal/core/domain"
)

const (
	targetSectionBonus = 0.35
	mappedDocBonus     = 0.15
	keywordDocBonus    = 0.10
	titleBigramWeight  = 0.10
	titleWordWeight    = 0.05
	contentBigramBonus = 0.10
	contentWordWeight  = 0.10
	exactPhraseBonus   = 0.05
)

var articleNumberRe = regexp.MustCompile(`Điều\s+(\d+)`)

type indexFile struct {
	Documents     []indexDocument     `json:"documents"`
	QueryMappings map[string][]string `json:"query_mappings"`
}

type indexDocument struct {
	ID            string         `json:"id"`
	File          string         `json:"file"`
	Title         string         `json:"title"`
	Description   string         `json:"description"`
	Keywords      []string       `json:"keywords"`
	Sections      []indexSection `json:"sections"`
	EffectiveDate string         `json:"effective_date"`
}

type indexSection struct {
	ID       string            `json:"id"`
	Articles []json.RawMessage `json:"articles"`
}

type chunk struct {
	ID      string
	Title   string
	Parent  string
	Content string
}

type document struct {
	indexDocument
	Content string
	Chunks  []chunk
}

type snapshot struct {
	documents map[string]document
	order     []string
	mappings  map[string][]string
	keywords  map[string][]string
	// doc_id#section_id -> article numbers
	sectionArticles map[string][]string
}

// Provider scores header-level chunks of the raw corpus against a query.
// The whole index is swapped atomically on reload.
type Provider struct {
	dir    string
	logger *slog.Logger
	snap   atomic.Pointer[snapshot]
}

func NewProvider(dir string, logger *slog.Logger) (*Provider, error) {
	p := &Provider{dir: dir, logger: logger}
	if err := p.Reload(); err != nil {
		return nil, err
	}
	return p, nil
}

// Reload rebuilds the corpus index from disk. A missing index file
// yields an empty provider rather than an error.
func (p *Provider) Reload() error {
	snap, err := p.load()
	if err != nil {
		return err
	}
	p.snap.Store(snap)
	return nil
}

func (p *Provider) load() (*snapshot, error) {
	raw, err := os.ReadFile(filepath.Join(p.dir, "index.json"))
	if errors.Is(err, fs.ErrNotExist) {
		p.logger.Warn("corpus index missing", "dir", p.dir)
		return emptySnapshot(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read corpus index: %w", err)
	}

	var index indexFile
	if err := json.Unmarshal(raw, &index); err != nil {
		return nil, fmt.Errorf("decode corpus index: %w", err)
	}

	snap := emptySnapshot()
	snap.mappings = index.QueryMappings
	for _, info := range index.Documents {
		content, err := readDocument(filepath.Join(p.dir, info.File))
		if err != nil {
			p.logger.Warn("skipping document", "doc_id", info.ID, "error", err)
			continue
		}
		doc := document{
			indexDocument: info,
			Content:       content,
			Chunks:        parseChunks(content, info.ID),
		}
		snap.documents[info.ID] = doc
		snap.order = append(snap.order, info.ID)

		for _, kw := range info.Keywords {
			kw = strings.ToLower(kw)
			snap.keywords[kw] = append(snap.keywords[kw], info.ID)
		}
		for _, sec := range info.Sections {
			key := info.ID + "#" + sec.ID
			for _, a := range sec.Articles {
				snap.sectionArticles[key] = append(snap.sectionArticles[key], stringifyArticle(a))
			}
		}
	}
	return snap, nil
}

func emptySnapshot() *snapshot {
	return &snapshot{
		documents:       map[string]document{},
		mappings:        map[string][]string{},
		keywords:        map[string][]string{},
		sectionArticles: map[string][]string{},
	}
}

// Article references in the index appear both as numbers and strings.
func stringifyArticle(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return strings.Trim(string(raw), `"`)
}

func readDocument(path string) (string, error) {
	if strings.EqualFold(filepath.Ext(path), ".pdf") {
		return readPDF(path)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func readPDF(path string) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	reader, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extract pdf text: %w", err)
	}
	text, err := io.ReadAll(reader)
	if err != nil {
		return "", fmt.Errorf("read pdf text: %w", err)
	}
	return string(text), nil
}

// parseChunks splits markdown text at "## " headers. The top-level "# "
// title is carried as parent context instead of forming its own chunk.
func parseChunks(content, docID string) []chunk {
	var (
		chunks  []chunk
		h1      string
		h2      string
		current []string
	)
	flush := func() {
		text := strings.TrimSpace(strings.Join(current, "\n"))
		if text == "" {
			return
		}
		title := h2
		if title == "" {
			title = h1
		}
		chunks = append(chunks, chunk{
			ID:      fmt.Sprintf("%s_%d", docID, len(chunks)),
			Title:   title,
			Parent:  h1,
			Content: text,
		})
	}

	for _, line := range strings.Split(content, "\n") {
		switch {
		case strings.HasPrefix(line, "# ") && !strings.HasPrefix(line, "## "):
			h1 = strings.TrimSpace(line[2:])
		case strings.HasPrefix(line, "## ") && !strings.HasPrefix(line, "### "):
			flush()
			h2 = strings.TrimSpace(line[3:])
			current = []string{line}
		default:
			current = append(current, line)
		}
	}
	flush()
	return chunks
}

// Search scores every chunk of the relevant documents and returns the
// top-k. It never fails; an unmatched query yields an empty result.
func (p *Provider) Search(query string, topK int, filter domain.SearchFilter) *domain.RetrievalResult {
	snap := p.snap.Load()
	queryLower := strings.ToLower(query)

	mappedSections := snap.mappedSections(queryLower)
	keywordDocs := snap.keywordDocs(queryLower)

	relevant := make(map[string]struct{}, len(mappedSections)+len(keywordDocs))
	for docID := range mappedSections {
		relevant[docID] = struct{}{}
	}
	for _, docID := range keywordDocs {
		relevant[docID] = struct{}{}
	}
	if len(relevant) == 0 {
		for _, docID := range snap.order {
			relevant[docID] = struct{}{}
		}
	}

	var scored []domain.KnowledgeChunk
	for _, docID := range snap.order {
		if _, ok := relevant[docID]; !ok {
			continue
		}
		if filter.DocID != "" && filter.DocID != docID {
			continue
		}
		doc := snap.documents[docID]
		_, isMapped := mappedSections[docID]
		hasKeyword := containsString(keywordDocs, docID)

		for _, c := range doc.Chunks {
			inTarget := snap.chunkInTargetSection(c, docID, mappedSections[docID])
			score := relevanceScore(queryLower, c, isMapped, hasKeyword, inTarget)
			if score <= 0 {
				continue
			}
			scored = append(scored, domain.KnowledgeChunk{
				Content: c.Content,
				Source:  fmt.Sprintf("%s - %s", doc.Title, c.Title),
				Metadata: map[string]string{
					domain.MetaDocID:      docID,
					domain.MetaChunkID:    c.ID,
					domain.MetaSourceType: string(domain.SourceKeyword),
				},
				Score: score,
			})
		}
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})
	total := len(scored)
	if topK > 0 && len(scored) > topK {
		scored = scored[:topK]
	}
	return &domain.RetrievalResult{Chunks: scored, Query: query, TotalFound: total}
}

func (p *Provider) Empty() bool {
	return len(p.snap.Load().documents) == 0
}

func (p *Provider) DocumentCount() int {
	return len(p.snap.Load().documents)
}

// ListDocuments returns catalog entries in index order.
func (p *Provider) ListDocuments() []domain.DocumentInfo {
	snap := p.snap.Load()
	out := make([]domain.DocumentInfo, 0, len(snap.order))
	for _, docID := range snap.order {
		doc := snap.documents[docID]
		out = append(out, domain.DocumentInfo{
			ID:          doc.ID,
			Title:       doc.Title,
			Description: doc.Description,
		})
	}
	return out
}

func (p *Provider) DocumentContent(docID string) (string, error) {
	doc, ok := p.snap.Load().documents[docID]
	if !ok {
		return "", domain.WrapError(domain.ErrDocumentNotFound, "document content", fmt.Errorf("doc_id %q", docID))
	}
	return doc.Content, nil
}

// mappedSections resolves query-mapping phrases present in the query to
// doc_id -> target section ids.
func (s *snapshot) mappedSections(queryLower string) map[string][]string {
	matched := map[string][]string{}
	for phrase, refs := range s.mappings {
		if !strings.Contains(queryLower, phrase) {
			continue
		}
		for _, ref := range refs {
			docID, sectionID, hasSection := strings.Cut(ref, "#")
			if _, ok := matched[docID]; !ok {
				matched[docID] = nil
			}
			if hasSection && !containsString(matched[docID], sectionID) {
				matched[docID] = append(matched[docID], sectionID)
			}
		}
	}
	return matched
}

func (s *snapshot) keywordDocs(queryLower string) []string {
	var matched []string
	for kw, docIDs := range s.keywords {
		if !strings.Contains(queryLower, kw) {
			continue
		}
		for _, docID := range docIDs {
			if !containsString(matched, docID) {
				matched = append(matched, docID)
			}
		}
	}
	return matched
}

// chunkInTargetSection maps the article number in a chunk title back to
// the index's section layout.
func (s *snapshot) chunkInTargetSection(c chunk, docID string, targetSections []string) bool {
	if len(targetSections) == 0 {
		return false
	}
	m := articleNumberRe.FindStringSubmatch(c.Title)
	if m == nil {
		return false
	}
	for _, sectionID := range targetSections {
		if containsString(s.sectionArticles[docID+"#"+sectionID], m[1]) {
			return true
		}
	}
	return false
}

func relevanceScore(queryLower string, c chunk, isMapped, hasKeyword, inTargetSection bool) float64 {
	score := 0.0
	if inTargetSection {
		score += targetSectionBonus
	}
	if isMapped {
		score += mappedDocBonus
	}
	if hasKeyword {
		score += keywordDocBonus
	}

	queryWords := strings.Fields(queryLower)
	querySet := toSet(queryWords)
	queryBigrams := toSet(bigrams(queryWords))

	titleWords := strings.Fields(strings.ToLower(c.Title))
	score += overlapRatio(queryBigrams, toSet(bigrams(titleWords))) * titleBigramWeight
	score += setOverlap(querySet, toSet(titleWords)) * titleWordWeight

	contentLower := strings.ToLower(c.Content)
	contentWords := strings.Fields(contentLower)
	score += overlapRatio(queryBigrams, toSet(bigrams(contentWords))) * contentBigramBonus
	score += overlapRatio(querySet, toSet(contentWords)) * contentWordWeight

	if strings.Contains(contentLower, queryLower) {
		score += exactPhraseBonus
	}
	if score > 1 {
		score = 1
	}
	return score
}

func bigrams(words []string) []string {
	if len(words) < 2 {
		return nil
	}
	out := make([]string, 0, len(words)-1)
	for i := 0; i < len(words)-1; i++ {
		out = append(out, words[i]+" "+words[i+1])
	}
	return out
}

func toSet(items []string) map[string]struct{} {
	set := make(map[string]struct{}, len(items))
	for _, it := range items {
		set[it] = struct{}{}
	}
	return set
}

// overlapRatio returns min(|a∩b| / |a|, 1), zero when either side is
// empty or the intersection is empty.
func overlapRatio(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	overlap := 0
	for item := range a {
		if _, ok := b[item]; ok {
			overlap++
		}
	}
	if overlap == 0 {
		return 0
	}
	ratio := float64(overlap) / float64(len(a))
	if ratio > 1 {
		ratio = 1
	}
	return ratio
}

// setOverlap is the plain fraction of a's items present in b.
func setOverlap(a, b map[string]struct{}) float64 {
	if len(a) == 0 {
		return 0
	}
	overlap := 0
	for item := range a {
		if _, ok := b[item]; ok {
			overlap++
		}
	}
	return float64(overlap) / float64(len(a))
}

func containsString(items []string, target string) bool {
	for _, it := range items {
		if it == target {
			return true
		}
	}
	return false
}
