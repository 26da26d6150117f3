package flowgate

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DirCatalog is a WorkflowCatalog backed by a directory of YAML workflow
// definitions, indexed by slug at load time.
type DirCatalog struct {
	bySlug map[string]*Workflow
}

// NewDirCatalog loads every .yaml/.yml file in dir as a workflow definition.
// Duplicate slugs are rejected so a lookup cannot silently shadow a
// workflow.
func NewDirCatalog(dir string) (*DirCatalog, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog directory: %w", err)
	}
	bySlug := map[string]*Workflow{}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		wf, err := LoadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", entry.Name(), err)
		}
		if _, exists := bySlug[wf.Slug()]; exists {
			return nil, fmt.Errorf("duplicate workflow slug %q in %s", wf.Slug(), entry.Name())
		}
		bySlug[wf.Slug()] = wf
	}
	return &DirCatalog{bySlug: bySlug}, nil
}

// GetBySlug returns the workflow with the given slug.
func (c *DirCatalog) GetBySlug(slug string) (*Workflow, error) {
	wf, ok := c.bySlug[slug]
	if !ok {
		return nil, fmt.Errorf("workflow %q not found", slug)
	}
	return wf, nil
}

// Slugs returns the catalog's workflow slugs. Order is not guaranteed;
// callers sort if they need stable output.
func (c *DirCatalog) Slugs() []string {
	slugs := make([]string, 0, len(c.bySlug))
	for slug := range c.bySlug {
		slugs = append(slugs, slug)
	}
	return slugs
}
