package persistence

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/supmcu-protocol/supmcu-go/pkg/model"
)

// DefinitionStore persists module definitions to a JSON file. It is safe
// for concurrent use from multiple goroutines.
type DefinitionStore struct {
	mu   sync.Mutex
	path string
}

// NewDefinitionStore creates a store backed by the file at path. The file
// is not touched until the first Save.
func NewDefinitionStore(path string) *DefinitionStore {
	return &DefinitionStore{path: path}
}

// Path returns the backing file path.
func (s *DefinitionStore) Path() string {
	return s.path
}

// Save writes the definitions to the backing file, creating parent
// directories as needed and replacing any previous content.
func (s *DefinitionStore) Save(defs []model.ModuleDefinition) error {
	return s.save(defs, false)
}

// SavePretty writes the definitions indented for human inspection.
func (s *DefinitionStore) SavePretty(defs []model.ModuleDefinition) error {
	return s.save(defs, true)
}

func (s *DefinitionStore) save(defs []model.ModuleDefinition, pretty bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating definition directory: %w", err)
		}
	}

	var (
		data []byte
		err  error
	)
	if pretty {
		data, err = json.MarshalIndent(defs, "", "  ")
	} else {
		data, err = json.Marshal(defs)
	}
	if err != nil {
		return fmt.Errorf("encoding definitions: %w", err)
	}

	if err := os.WriteFile(s.path, data, 0644); err != nil {
		return fmt.Errorf("writing definition file: %w", err)
	}
	return nil
}

// Load reads the definitions from the backing file. A missing file is not
// an error and returns an empty catalog.
func (s *DefinitionStore) Load() ([]model.ModuleDefinition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading definition file: %w", err)
	}

	var defs []model.ModuleDefinition
	if err := json.Unmarshal(data, &defs); err != nil {
		return nil, fmt.Errorf("decoding definition file: %w", err)
	}
	return defs, nil
}

// Clear removes the backing file. A missing file is not an error.
func (s *DefinitionStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
