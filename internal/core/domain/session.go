package domain

import "time"

// Exchange is one answered question persisted for audit. Sources lists
// the provenance metadata of the chunks the answer was grounded on.
type Exchange struct {
	ID        string              `json:"id"`
	UserID    string              `json:"user_id"`
	Question  string              `json:"question"`
	Answer    string              `json:"answer"`
	Sources   []map[string]string `json:"sources"`
	Degraded  bool                `json:"degraded"`
	CreatedAt time.Time           `json:"created_at"`
}

// Answer is the response of the answering use case.
type Answer struct {
	Reply    string           `json:"reply"`
	Sources  []KnowledgeChunk `json:"sources"`
	Degraded bool             `json:"degraded"`
}
