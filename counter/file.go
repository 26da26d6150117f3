package counter

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// FileBackend stores the record as a JSON file. It is the durable backend:
// the value survives restarts, and its month key drives rollover detection
// when used as the counter's first backend.
type FileBackend struct {
	path string
}

// NewFileBackend creates a file-backed counter backend at the given path.
func NewFileBackend(path string) (*FileBackend, error) {
	if path == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get user home directory: %w", err)
		}
		path = filepath.Join(homeDir, ".flowgate", "usage.json")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	return &FileBackend{path: path}, nil
}

func (b *FileBackend) Read() (Record, bool, error) {
	data, err := os.ReadFile(b.path)
	if os.IsNotExist(err) {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, fmt.Errorf("failed to read counter file: %w", err)
	}
	var record Record
	if err := json.Unmarshal(data, &record); err != nil {
		return Record{}, false, fmt.Errorf("corrupt counter file: %w", err)
	}
	return record, true, nil
}

func (b *FileBackend) Write(record Record) error {
	data, err := json.Marshal(record)
	if err != nil {
		return err
	}
	if err := os.WriteFile(b.path, data, 0644); err != nil {
		return fmt.Errorf("failed to write counter file: %w", err)
	}
	return nil
}
