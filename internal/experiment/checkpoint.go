package experiment

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

const checkpointVersion = 1

// Checkpoint is the on-disk run journal: an append-only log of completed
// batch records plus enough identity to refuse a mismatched resume.
type Checkpoint struct {
	Version    int           `json:"version"`
	ConfigHash string        `json:"config_hash"`
	RunID      string        `json:"run_id"`
	CreatedAt  time.Time     `json:"created_at"`
	UpdatedAt  time.Time     `json:"updated_at"`
	Batches    []BatchRecord `json:"batches"`
}

// ReadCheckpoint loads a checkpoint without enforcing a config hash.
// Used by report/status, which inspect whatever run is on disk.
func ReadCheckpoint(path string) (Checkpoint, error) {
	var cp Checkpoint

	data, err := os.ReadFile(path)
	if err != nil {
		return cp, fmt.Errorf("failed to read checkpoint %s: %w", path, err)
	}
	if err := json.Unmarshal(data, &cp); err != nil {
		return cp, fmt.Errorf("failed to parse checkpoint %s: %w", path, err)
	}
	if cp.Version != checkpointVersion {
		return cp, fmt.Errorf("%w: got %d, want %d", ErrCheckpointVersion, cp.Version, checkpointVersion)
	}
	return cp, nil
}

// CheckpointFile owns the checkpoint for a running experiment. All writes
// go through one mutex and land atomically (temp file + rename), so a
// crash leaves either the old or the new checkpoint, never a torn one.
type CheckpointFile struct {
	path string

	mu sync.Mutex
	cp Checkpoint
}

// CreateCheckpointFile starts a fresh checkpoint for a new run.
func CreateCheckpointFile(path, configHash string) (*CheckpointFile, error) {
	now := time.Now().UTC()
	f := &CheckpointFile{
		path: path,
		cp: Checkpoint{
			Version:    checkpointVersion,
			ConfigHash: configHash,
			RunID:      uuid.New().String(),
			CreatedAt:  now,
			UpdatedAt:  now,
		},
	}
	if err := f.write(); err != nil {
		return nil, err
	}
	return f, nil
}

// OpenCheckpointFile loads an existing checkpoint for resumption.
// ErrCheckpointMismatch when it belongs to a different configuration.
func OpenCheckpointFile(path, configHash string) (*CheckpointFile, error) {
	cp, err := ReadCheckpoint(path)
	if err != nil {
		return nil, err
	}
	if cp.ConfigHash != configHash {
		return nil, fmt.Errorf("%w (checkpoint %s)", ErrCheckpointMismatch, path)
	}
	return &CheckpointFile{path: path, cp: cp}, nil
}

// RunID returns the run identifier recorded in the checkpoint.
func (f *CheckpointFile) RunID() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cp.RunID
}

// Append records one completed batch and persists the checkpoint.
func (f *CheckpointFile) Append(rec BatchRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.cp.Batches = append(f.cp.Batches, rec)
	f.cp.UpdatedAt = time.Now().UTC()
	if err := f.write(); err != nil {
		// Roll back the in-memory append so state matches disk.
		f.cp.Batches = f.cp.Batches[:len(f.cp.Batches)-1]
		return err
	}
	return nil
}

// Completed returns the set of batch ids already recorded.
func (f *CheckpointFile) Completed() map[string]bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	done := make(map[string]bool, len(f.cp.Batches))
	for _, rec := range f.cp.Batches {
		done[rec.BatchID] = true
	}
	return done
}

// Records returns a copy of the recorded batches.
func (f *CheckpointFile) Records() []BatchRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]BatchRecord(nil), f.cp.Batches...)
}

// write persists the checkpoint atomically. Caller holds f.mu.
func (f *CheckpointFile) write() error {
	data, err := json.MarshalIndent(f.cp, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal checkpoint: %w", err)
	}

	if dir := filepath.Dir(f.path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create checkpoint directory: %w", err)
		}
	}

	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write checkpoint temp file: %w", err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		return fmt.Errorf("failed to replace checkpoint: %w", err)
	}
	return nil
}
