package flowgate

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FileProgressStore is a file-based implementation that persists one JSON
// document per key under a data directory.
type FileProgressStore struct {
	dataDir string
}

// NewFileProgressStore creates a new file-based progress store.
func NewFileProgressStore(dataDir string) (*FileProgressStore, error) {
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get user home directory: %w", err)
		}
		dataDir = filepath.Join(homeDir, ".flowgate", "progress")
	}
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory %s: %w", dataDir, err)
	}
	return &FileProgressStore{dataDir: dataDir}, nil
}

func (s *FileProgressStore) path(key string) string {
	return filepath.Join(s.dataDir, fmt.Sprintf("%s.json", sanitizeKey(key)))
}

// Save writes the progress record for a key as JSON.
func (s *FileProgressStore) Save(key string, progress *Progress) error {
	data, err := json.Marshal(progress)
	if err != nil {
		return fmt.Errorf("failed to marshal progress: %w", err)
	}
	if err := os.WriteFile(s.path(key), data, 0644); err != nil {
		return fmt.Errorf("failed to write progress file: %w", err)
	}
	return nil
}

// Load returns the stored progress for a key, or nil when no record exists.
func (s *FileProgressStore) Load(key string) (*Progress, error) {
	data, err := os.ReadFile(s.path(key))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read progress file: %w", err)
	}
	var progress Progress
	if err := json.Unmarshal(data, &progress); err != nil {
		return nil, fmt.Errorf("failed to unmarshal progress: %w", err)
	}
	return &progress, nil
}

// Delete removes the stored progress for a key. Deleting an absent key is
// not an error.
func (s *FileProgressStore) Delete(key string) error {
	err := os.Remove(s.path(key))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete progress file: %w", err)
	}
	return nil
}

// sanitizeKey maps a progress key to a safe file name.
func sanitizeKey(key string) string {
	replacer := strings.NewReplacer("/", "_", "\\", "_", ":", "_", "..", "_")
	return replacer.Replace(key)
}
