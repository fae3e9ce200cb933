// Package library persists generation results in a YAML file keyed by brief.
package library

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Catalog is the on-disk shape: one list of records per brief.
type Catalog map[string][]map[string]any

// Store reads and appends YAML prompt-library files.
type Store struct{}

// Append adds entries under brief in the library at path, keeping whatever
// the file already holds. Parent directories are created as needed. A brief
// with no entries still gets its key so the library records the attempt.
func (Store) Append(brief string, entries []any, path string) (string, error) {
	catalog := map[string][]any{}

	raw, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(raw, &catalog); err != nil {
			return "", fmt.Errorf("library %s is not a valid store: %w", path, err)
		}
		if catalog == nil {
			catalog = map[string][]any{}
		}
	case os.IsNotExist(err):
	default:
		return "", fmt.Errorf("read library %s: %w", path, err)
	}

	list := append(catalog[brief], entries...)
	if list == nil {
		list = []any{}
	}
	catalog[brief] = list

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("create library dir %s: %w", dir, err)
		}
	}

	out, err := yaml.Marshal(catalog)
	if err != nil {
		return "", fmt.Errorf("encode library: %w", err)
	}
	if err := os.WriteFile(path, out, 0o644); err != nil {
		return "", fmt.Errorf("write library %s: %w", path, err)
	}
	return path, nil
}

// Load reads the whole library. A missing file is an empty catalog.
func (Store) Load(path string) (Catalog, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Catalog{}, nil
		}
		return nil, fmt.Errorf("read library %s: %w", path, err)
	}
	var cat Catalog
	if err := yaml.Unmarshal(raw, &cat); err != nil {
		return nil, fmt.Errorf("library %s is not a valid store: %w", path, err)
	}
	if cat == nil {
		cat = Catalog{}
	}
	return cat, nil
}

// LastEntry returns the most recent record stored for brief, or nil when
// the brief has none.
func (c Catalog) LastEntry(brief string) map[string]any {
	entries := c[brief]
	if len(entries) == 0 {
		return nil
	}
	return entries[len(entries)-1]
}
