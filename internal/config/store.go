package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"pyinstaller-studio/internal/domain"
)

// Store defines persistence operations for packaging profiles.
type Store interface {
	Load() (domain.Settings, error)
	Save(domain.Settings) error
	Export(path string, cfg domain.Settings) error
	Import(path string) (domain.Settings, error)
}

// JSONStore keeps the last used profile in a single JSON file on disk and
// reads or writes profiles at arbitrary paths for export and import.
type JSONStore struct {
	path string
}

// NewJSONStore creates a JSON-backed profile store.
func NewJSONStore(path string) *JSONStore {
	return &JSONStore{path: path}
}

// Path returns the history file location.
func (s *JSONStore) Path() string {
	return s.path
}

// Load reads the history profile or returns defaults when missing.
func (s *JSONStore) Load() (domain.Settings, error) {
	cfg, err := readProfile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return DefaultSettings(), nil
	}
	return cfg, err
}

// Save writes the history profile.
func (s *JSONStore) Save(cfg domain.Settings) error {
	return writeProfile(s.path, cfg)
}

// Export writes a profile to a user-chosen file.
func (s *JSONStore) Export(path string, cfg domain.Settings) error {
	if path == "" {
		return errors.New("export path is empty")
	}
	return writeProfile(path, cfg)
}

// Import reads a profile from a user-chosen file. Keys missing from the file
// keep their default values.
func (s *JSONStore) Import(path string) (domain.Settings, error) {
	if path == "" {
		return domain.Settings{}, errors.New("import path is empty")
	}
	cfg, err := readProfile(path)
	if err != nil {
		return domain.Settings{}, fmt.Errorf("import %s: %w", path, err)
	}
	return cfg, nil
}

func readProfile(path string) (domain.Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.Settings{}, err
	}

	cfg := DefaultSettings()
	if err := json.Unmarshal(data, &cfg); err != nil {
		return domain.Settings{}, fmt.Errorf("parse profile: %w", err)
	}
	if cfg.DataFiles == nil {
		cfg.DataFiles = []domain.DataFile{}
	}
	return cfg, nil
}

// writeProfile writes settings as indented JSON and creates parent directories.
func writeProfile(path string, cfg domain.Settings) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	if cfg.DataFiles == nil {
		cfg.DataFiles = []domain.DataFile{}
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0o644)
}
