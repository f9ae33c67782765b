// Package mapping tracks source-company to target-company entity IDs for
// the duration of one transfer run.
package mapping

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/qbcopy-dev/qbcopy/internal/model"
)

// Store maps (entity type, source ID) to the corresponding target ID.
// It is scoped to a single run and mutated by a single worker.
type Store struct {
	ids map[model.EntityType]map[string]string
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{ids: make(map[model.EntityType]map[string]string)}
}

// Put inserts or overwrites the mapping for a source ID.
func (s *Store) Put(t model.EntityType, sourceID, targetID string) {
	m, ok := s.ids[t]
	if !ok {
		m = make(map[string]string)
		s.ids[t] = m
	}
	m[sourceID] = targetID
}

// Get returns the target ID mapped to a source ID, if any.
func (s *Store) Get(t model.EntityType, sourceID string) (string, bool) {
	id, ok := s.ids[t][sourceID]
	return id, ok
}

// Len returns the number of mappings recorded for an entity type.
func (s *Store) Len(t model.EntityType) int {
	return len(s.ids[t])
}

// Save writes the mappings to a JSON file so a later run can reuse them.
func (s *Store) Save(path string) error {
	data, err := json.MarshalIndent(s.ids, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling id mappings: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing id mappings: %w", err)
	}
	return nil
}

// Load reads mappings from a JSON file. A missing file leaves the store
// empty and is not an error.
func (s *Store) Load(path string) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading id mappings: %w", err)
	}
	if err := json.Unmarshal(data, &s.ids); err != nil {
		return fmt.Errorf("parsing id mappings %s: %w", path, err)
	}
	if s.ids == nil {
		s.ids = make(map[model.EntityType]map[string]string)
	}
	return nil
}
