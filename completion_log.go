package flowgate

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// CompletionLogEntry is a single completed-run record in the local audit log.
// Like the durable progress record, it carries no user-authored content:
// only selectable field values appear in SafeValues.
type CompletionLogEntry struct {
	RunID        string            `json:"run_id"`
	WorkflowSlug string            `json:"workflow_slug"`
	IdentityKind IdentityKind      `json:"identity_kind"`
	SafeValues   map[string]string `json:"safe_values,omitempty"`
	CompletedAt  time.Time         `json:"completed_at"`
}

// CompletionLog records completed runs locally, independent of whether the
// external usage report succeeded.
type CompletionLog interface {
	// LogCompletion appends one completed-run entry.
	LogCompletion(ctx context.Context, entry *CompletionLogEntry) error

	// History retrieves the logged completions for a workflow slug.
	History(ctx context.Context, workflowSlug string) ([]*CompletionLogEntry, error)
}

// FileCompletionLog is an implementation of CompletionLog that logs to a
// newline-delimited JSON file per workflow slug.
type FileCompletionLog struct {
	directory string
}

func NewFileCompletionLog(directory string) *FileCompletionLog {
	return &FileCompletionLog{directory: directory}
}

func (l *FileCompletionLog) logPath(workflowSlug string) string {
	return filepath.Join(l.directory, fmt.Sprintf("%s.jsonl", sanitizeKey(workflowSlug)))
}

func (l *FileCompletionLog) History(ctx context.Context, workflowSlug string) ([]*CompletionLogEntry, error) {
	data, err := os.ReadFile(l.logPath(workflowSlug))
	if err != nil {
		return nil, err
	}
	var entries []*CompletionLogEntry
	for _, line := range strings.Split(string(data), "\n") {
		if line == "" {
			continue
		}
		var entry CompletionLogEntry
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			return nil, err
		}
		entries = append(entries, &entry)
	}
	return entries, nil
}

func (l *FileCompletionLog) LogCompletion(ctx context.Context, entry *CompletionLogEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	filePath := l.logPath(entry.WorkflowSlug)
	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return err
	}
	f, err := os.OpenFile(filePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := f.Write(append(data, '\n')); err != nil {
		return err
	}
	return f.Sync()
}

// NullCompletionLog is a no-op implementation
type NullCompletionLog struct{}

func NewNullCompletionLog() *NullCompletionLog {
	return &NullCompletionLog{}
}

func (l *NullCompletionLog) LogCompletion(ctx context.Context, entry *CompletionLogEntry) error {
	return nil
}

func (l *NullCompletionLog) History(ctx context.Context, workflowSlug string) ([]*CompletionLogEntry, error) {
	return nil, nil
}
