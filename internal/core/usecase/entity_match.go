package usecase

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/kirillkom/regulations-assistant/internal/core/domain"
)

const (
	entityLexicalWeight = 0.4
	entityValueBonus    = 0.2
	entityKeyBonus      = 0.1
	entityTriggerBonus  = 0.3

	defaultEntityThreshold = 0.3
)

// EntityMatcher scores structured entities against a query. Matching is
// pure computation over the in-memory snapshot; no I/O.
type EntityMatcher struct {
	threshold float64
	triggers  []domain.TriggerRule
}

func NewEntityMatcher(threshold float64, triggers []domain.TriggerRule) *EntityMatcher {
	if threshold <= 0 {
		threshold = defaultEntityThreshold
	}
	return &EntityMatcher{threshold: threshold, triggers: triggers}
}

// Match returns one chunk per entity whose score strictly exceeds the
// threshold. Output order follows the store's iteration order; the fusion
// stage owns ranking.
func (m *EntityMatcher) Match(query string, entities map[string][]domain.EntityRecord, filter domain.SearchFilter) []domain.KnowledgeChunk {
	queryLower := strings.ToLower(query)
	queryTokens := tokenSet(query)
	if len(queryTokens) == 0 {
		return nil
	}

	var chunks []domain.KnowledgeChunk
	for docID, records := range entities {
		if filter.DocID != "" && filter.DocID != docID {
			continue
		}
		for _, rec := range records {
			score := m.scoreEntity(queryLower, queryTokens, rec)
			if score <= m.threshold {
				continue
			}
			chunks = append(chunks, m.toChunk(docID, rec, score))
		}
	}
	return chunks
}

func (m *EntityMatcher) scoreEntity(queryLower string, queryTokens map[string]struct{}, rec domain.EntityRecord) float64 {
	overlap := 0
	for tok := range tokenSet(rec.Text) {
		if _, ok := queryTokens[tok]; ok {
			overlap++
		}
	}
	ratio := float64(overlap) / float64(len(queryTokens))
	if ratio > 1 {
		ratio = 1
	}
	score := entityLexicalWeight * ratio

	for _, key := range rec.Attributes.Keys() {
		value, _ := rec.Attributes.Get(key)
		valueLower := strings.ToLower(value)
		keyLower := strings.ToLower(key)
		for tok := range queryTokens {
			if strings.Contains(valueLower, tok) {
				score += entityValueBonus
				break
			}
		}
		for tok := range queryTokens {
			if strings.Contains(keyLower, tok) {
				score += entityKeyBonus
				break
			}
		}
	}

	ruleType, _ := rec.Attributes.Get("rule_type")
	if ruleType != "" {
		ruleTypeLower := strings.ToLower(ruleType)
		for _, rule := range m.triggers {
			if strings.Contains(queryLower, rule.Trigger) && strings.Contains(ruleTypeLower, rule.RuleType) {
				score += entityTriggerBonus
				break
			}
		}
	}

	if score > 1 {
		score = 1
	}
	return score
}

func (m *EntityMatcher) toChunk(docID string, rec domain.EntityRecord, score float64) domain.KnowledgeChunk {
	meta := map[string]string{
		domain.MetaDocID:      docID,
		domain.MetaSourceType: string(domain.SourceEntity),
		domain.MetaClass:      rec.Class,
	}
	if ruleType, ok := rec.Attributes.Get("rule_type"); ok {
		meta[domain.MetaRuleType] = ruleType
	}
	return domain.KnowledgeChunk{
		Content:  formatEntityContext(rec),
		Source:   fmt.Sprintf("Quy định (structured) - %s", rec.Class),
		Metadata: meta,
		Score:    score,
	}
}

// formatEntityContext renders an entity as a context block: the class
// marker, the verbatim text, then attributes in their stored order.
func formatEntityContext(rec domain.EntityRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "**[%s]** %s", rec.Class, rec.Text)
	for _, key := range rec.Attributes.Keys() {
		value, _ := rec.Attributes.Get(key)
		fmt.Fprintf(&b, "\n  - %s: %s", key, value)
	}
	return b.String()
}

// tokenSet lowercases and splits on any rune that is not a letter or
// digit. Unicode-aware so accented text tokenizes correctly.
func tokenSet(s string) map[string]struct{} {
	tokens := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	set := make(map[string]struct{}, len(tokens))
	for _, tok := range tokens {
		set[tok] = struct{}{}
	}
	return set
}
