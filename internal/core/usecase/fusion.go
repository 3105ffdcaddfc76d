package usecase

import (
	"sort"

	"github.com/kirillkom/regulations-assistant/internal/core/domain"
)

// strategyPriority breaks score ties deterministically: reasoned outline
// hits outrank structured entities, which outrank the lexical fallback.
var strategyPriority = map[domain.SourceType]int{
	domain.SourceTree:    0,
	domain.SourceEntity:  1,
	domain.SourceKeyword: 2,
}

// dedupeAgainst drops candidates whose content exactly matches a chunk
// already collected. Content equality is the only dedup key.
func dedupeAgainst(collected, candidates []domain.KnowledgeChunk) []domain.KnowledgeChunk {
	seen := make(map[string]struct{}, len(collected))
	for _, c := range collected {
		seen[c.Content] = struct{}{}
	}
	out := candidates[:0]
	for _, c := range candidates {
		if _, dup := seen[c.Content]; dup {
			continue
		}
		seen[c.Content] = struct{}{}
		out = append(out, c)
	}
	return out
}

// sortChunks orders by score descending, then strategy priority, then
// document id and content so equal candidates always land in one order.
func sortChunks(chunks []domain.KnowledgeChunk) {
	sort.SliceStable(chunks, func(i, j int) bool {
		a, b := chunks[i], chunks[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		pa, pb := strategyPriority[a.SourceType()], strategyPriority[b.SourceType()]
		if pa != pb {
			return pa < pb
		}
		if a.DocID() != b.DocID() {
			return a.DocID() < b.DocID()
		}
		return a.Content < b.Content
	})
}

func trimChunks(chunks []domain.KnowledgeChunk, topK int) []domain.KnowledgeChunk {
	if topK > 0 && len(chunks) > topK {
		return chunks[:topK]
	}
	return chunks
}
