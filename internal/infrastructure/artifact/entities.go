package artifact

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/kirillkom/regulations-assistant/internal/core/domain"
)

type entityDocument struct {
	SourceFile  string                `json:"source_file"`
	EntityCount int                   `json:"entity_count"`
	Entities    []domain.EntityRecord `json:"entities"`
}

// LoadEntities reads the structured-entity artifact. A missing file is
// not an error; it leaves the entity strategy empty.
func LoadEntities(path string) (map[string][]domain.EntityRecord, error) {
	raw, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string][]domain.EntityRecord{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read entity artifact %s: %w", path, err)
	}

	var docs map[string]entityDocument
	if err := json.Unmarshal(raw, &docs); err != nil {
		return nil, fmt.Errorf("decode entity artifact %s: %w", path, err)
	}

	entities := make(map[string][]domain.EntityRecord, len(docs))
	for docID, doc := range docs {
		if len(doc.Entities) == 0 {
			continue
		}
		entities[docID] = doc.Entities
	}
	return entities, nil
}
