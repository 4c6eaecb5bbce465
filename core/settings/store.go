package settings

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Store persists settings as a single JSON file. Reads always return a
// complete Settings value; fields missing from disk fall back to defaults.
type Store struct {
	path string

	mu sync.Mutex
}

func NewStore(path string) *Store {
	return &Store{path: path}
}

// Load reads settings from disk, merged over defaults. A missing file is not
// an error; it yields the defaults.
func (s *Store) Load() (Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

func (s *Store) load() (Settings, error) {
	raw, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return Defaults(), nil
	}
	if err != nil {
		return Settings{}, fmt.Errorf("failed to read settings: %w", err)
	}

	var stored Settings
	if err := json.Unmarshal(raw, &stored); err != nil {
		return Settings{}, fmt.Errorf("failed to parse settings: %w", err)
	}
	return Merge(Defaults(), stored), nil
}

// Save overlays partial onto the stored settings and writes the result back,
// returning the merged settings.
func (s *Store) Save(partial Settings) (Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.load()
	if err != nil {
		return Settings{}, err
	}
	merged := Merge(current, partial)
	if err := merged.VAD.Validate(); err != nil {
		return Settings{}, fmt.Errorf("rejecting settings: %w", err)
	}
	if err := merged.WakeWordConfig().Validate(); err != nil {
		return Settings{}, fmt.Errorf("rejecting settings: %w", err)
	}

	raw, err := json.MarshalIndent(merged, "", "  ")
	if err != nil {
		return Settings{}, fmt.Errorf("failed to encode settings: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return Settings{}, fmt.Errorf("failed to create settings directory: %w", err)
	}
	if err := os.WriteFile(s.path, raw, 0o644); err != nil {
		return Settings{}, fmt.Errorf("failed to write settings: %w", err)
	}
	return merged, nil
}
