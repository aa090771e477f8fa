// Package golden persists trusted reference transformations in SQLite,
// one per snippet. The store is the source of truth the validator scores
// against; an experiment refuses to dispatch while any snippet in the
// pool has no golden answer.
package golden

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

var (
	// ErrNotFound indicates no golden answer exists for the snippet.
	ErrNotFound = errors.New("golden answer not found")
	// ErrAlreadyExists indicates a non-forced Put hit an existing answer.
	ErrAlreadyExists = errors.New("golden answer already exists")
)

// Answer is one trusted reference transformation.
type Answer struct {
	SnippetID        string    `json:"snippet_id"`
	ReferenceContent string    `json:"reference_content"`
	GeneratingModel  string    `json:"generating_model"`
	GeneratedAt      time.Time `json:"generated_at"`
}

// Store is a SQLite-backed golden answer store. Safe for concurrent use.
type Store struct {
	db     *sql.DB
	mu     sync.RWMutex
	path   string
	logger *zap.Logger
}

// Open initializes the store at path, creating the schema if needed.
func Open(path string, logger *zap.Logger) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open golden store: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		logger.Debug("failed to set sqlite busy_timeout", zap.Error(err))
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		logger.Debug("failed to set sqlite journal_mode=WAL", zap.Error(err))
	}
	if _, err := db.Exec("PRAGMA synchronous = NORMAL"); err != nil {
		logger.Debug("failed to set sqlite synchronous=NORMAL", zap.Error(err))
	}

	schema := `CREATE TABLE IF NOT EXISTS golden_answers (
		snippet_id        TEXT PRIMARY KEY,
		reference_content TEXT NOT NULL,
		generating_model  TEXT NOT NULL,
		generated_at      DATETIME NOT NULL
	)`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create golden_answers schema: %w", err)
	}

	logger.Debug("golden store opened", zap.String("path", path))
	return &Store{db: db, path: path, logger: logger}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Get returns the golden answer for a snippet, or ErrNotFound.
func (s *Store) Get(snippetID string) (Answer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var ans Answer
	row := s.db.QueryRow(
		`SELECT snippet_id, reference_content, generating_model, generated_at
		 FROM golden_answers WHERE snippet_id = ?`, snippetID)
	if err := row.Scan(&ans.SnippetID, &ans.ReferenceContent, &ans.GeneratingModel, &ans.GeneratedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Answer{}, fmt.Errorf("%w: %s", ErrNotFound, snippetID)
		}
		return Answer{}, fmt.Errorf("failed to load golden answer %s: %w", snippetID, err)
	}
	return ans, nil
}

// Reference returns just the reference content for a snippet. This is the
// lookup the validator uses.
func (s *Store) Reference(snippetID string) (string, error) {
	ans, err := s.Get(snippetID)
	if err != nil {
		return "", err
	}
	return ans.ReferenceContent, nil
}

// Put stores a golden answer. Without force an existing answer is
// preserved and ErrAlreadyExists returned; with force it is replaced.
func (s *Store) Put(ans Answer, force bool) error {
	if ans.SnippetID == "" {
		return fmt.Errorf("golden answer has empty snippet_id")
	}
	if ans.GeneratedAt.IsZero() {
		ans.GeneratedAt = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !force {
		var exists int
		row := s.db.QueryRow(`SELECT COUNT(*) FROM golden_answers WHERE snippet_id = ?`, ans.SnippetID)
		if err := row.Scan(&exists); err != nil {
			return fmt.Errorf("failed to check golden answer %s: %w", ans.SnippetID, err)
		}
		if exists > 0 {
			return fmt.Errorf("%w: %s", ErrAlreadyExists, ans.SnippetID)
		}
	}

	_, err := s.db.Exec(
		`INSERT INTO golden_answers (snippet_id, reference_content, generating_model, generated_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(snippet_id) DO UPDATE SET
			reference_content = excluded.reference_content,
			generating_model  = excluded.generating_model,
			generated_at      = excluded.generated_at`,
		ans.SnippetID, ans.ReferenceContent, ans.GeneratingModel, ans.GeneratedAt)
	if err != nil {
		return fmt.Errorf("failed to store golden answer %s: %w", ans.SnippetID, err)
	}
	return nil
}

// Missing returns the subset of ids that have no golden answer, in the
// order given.
func (s *Store) Missing(ids []string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`SELECT snippet_id FROM golden_answers`)
	if err != nil {
		return nil, fmt.Errorf("failed to list golden answers: %w", err)
	}
	defer rows.Close()

	have := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan golden answer id: %w", err)
		}
		have[id] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate golden answers: %w", err)
	}

	var missing []string
	for _, id := range ids {
		if !have[id] {
			missing = append(missing, id)
		}
	}
	return missing, nil
}

// Count returns the number of stored golden answers.
func (s *Store) Count() (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM golden_answers`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count golden answers: %w", err)
	}
	return n, nil
}
