package snippet

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// PoolMetadata describes where a pool's snippets came from.
type PoolMetadata struct {
	SourceRepo  string    `json:"source_repo,omitempty"`
	Commit      string    `json:"commit,omitempty"`
	Pattern     string    `json:"pattern,omitempty"`
	ExtractedAt time.Time `json:"extracted_at,omitempty"`
	Total       int       `json:"total_snippets"`
}

type poolFile struct {
	Metadata PoolMetadata `json:"metadata"`
	Snippets []Snippet    `json:"snippets"`
}

// LoadPool reads a pool JSON file. Records missing an id are assigned one
// from their position, so hand-edited pools stay loadable. Structural
// problems (missing file_path, empty content, duplicate ids) are errors.
func LoadPool(path string) (*Pool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read snippet pool %s: %w", path, err)
	}

	var pf poolFile
	if err := json.Unmarshal(data, &pf); err != nil {
		return nil, fmt.Errorf("failed to parse snippet pool %s: %w", path, err)
	}

	for i := range pf.Snippets {
		if pf.Snippets[i].ID == "" {
			pf.Snippets[i].ID = fmt.Sprintf("snippet_%03d", i)
		}
	}

	pool, err := NewPool(pf.Snippets)
	if err != nil {
		return nil, fmt.Errorf("invalid snippet pool %s: %w", path, err)
	}
	return pool, nil
}

// SavePool writes a pool and its metadata as indented JSON.
func SavePool(path string, pool *Pool, meta PoolMetadata) error {
	meta.Total = pool.Len()
	pf := poolFile{Metadata: meta, Snippets: make([]Snippet, 0, pool.Len())}
	for i := 0; i < pool.Len(); i++ {
		pf.Snippets = append(pf.Snippets, pool.At(i))
	}

	data, err := json.MarshalIndent(pf, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal snippet pool: %w", err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create pool directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write snippet pool %s: %w", path, err)
	}
	return nil
}
