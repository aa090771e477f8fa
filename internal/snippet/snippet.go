// Package snippet defines the immutable code snippet records the experiment
// operates on, the read-only pool they are collected in, and the extraction
// pipeline that builds a pool from git grep output.
package snippet

import (
	"fmt"
	"strings"
)

// Snippet is one contiguous block of source lines around a pattern match.
// Snippets are value types and never mutated after construction.
type Snippet struct {
	ID           string   `json:"id"`
	FilePath     string   `json:"file_path"`
	MatchedLines []int    `json:"matched_lines"`
	ContextLines []int    `json:"context_lines"`
	Content      []string `json:"content"`
}

// FullContent joins the snippet's lines into a single string.
func (s Snippet) FullContent() string {
	return strings.Join(s.Content, "\n")
}

// LineCount returns the number of lines in the snippet.
func (s Snippet) LineCount() int {
	return len(s.Content)
}

// Pool is a read-only ordered collection of snippets with unique IDs.
type Pool struct {
	snippets []Snippet
	index    map[string]int
}

// NewPool builds a pool from snippets, validating uniqueness and shape.
func NewPool(snippets []Snippet) (*Pool, error) {
	index := make(map[string]int, len(snippets))
	for i, s := range snippets {
		if s.ID == "" {
			return nil, fmt.Errorf("snippet %d: empty id", i)
		}
		if s.FilePath == "" {
			return nil, fmt.Errorf("snippet %s: empty file_path", s.ID)
		}
		if len(s.Content) == 0 {
			return nil, fmt.Errorf("snippet %s: empty content", s.ID)
		}
		if _, dup := index[s.ID]; dup {
			return nil, fmt.Errorf("duplicate snippet id %s", s.ID)
		}
		index[s.ID] = i
	}
	return &Pool{snippets: append([]Snippet(nil), snippets...), index: index}, nil
}

// Len returns the number of snippets in the pool.
func (p *Pool) Len() int {
	return len(p.snippets)
}

// Get returns the snippet with the given id.
func (p *Pool) Get(id string) (Snippet, bool) {
	i, ok := p.index[id]
	if !ok {
		return Snippet{}, false
	}
	return p.snippets[i], true
}

// At returns the snippet at position i in load order.
func (p *Pool) At(i int) Snippet {
	return p.snippets[i]
}

// IDs returns the snippet ids in load order. The slice is a copy.
func (p *Pool) IDs() []string {
	ids := make([]string, len(p.snippets))
	for i, s := range p.snippets {
		ids[i] = s.ID
	}
	return ids
}
