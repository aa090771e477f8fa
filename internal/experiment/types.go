// Package experiment runs the batch degradation experiment: it plans
// batches, dispatches them to the model, validates the replies against
// golden answers, and records every completed batch in a crash-safe
// checkpoint so interrupted runs resume without repeating work.
package experiment

import (
	"errors"
	"time"

	"ctxbench/internal/validate"
)

// RunState tracks where the orchestrator is in its lifecycle.
type RunState string

const (
	StateInitializing  RunState = "/initializing"
	StateResuming      RunState = "/resuming"
	StateSampling      RunState = "/sampling"
	StateDispatching   RunState = "/dispatching"
	StateValidating    RunState = "/validating"
	StateCheckpointing RunState = "/checkpointing"
	StateCompleted     RunState = "/completed"
	StateFailed        RunState = "/failed"
)

// Terminal reports whether the state ends the run.
func (s RunState) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

var (
	// ErrMissingGoldenAnswers indicates snippets in the pool have no
	// golden answer; dispatch would waste quota on unvalidatable work.
	ErrMissingGoldenAnswers = errors.New("golden answers missing for pool snippets")

	// ErrCheckpointMismatch indicates the checkpoint on disk belongs to a
	// differently configured experiment.
	ErrCheckpointMismatch = errors.New("checkpoint config hash does not match current configuration")

	// ErrCheckpointVersion indicates an unreadable future or corrupt
	// checkpoint format.
	ErrCheckpointVersion = errors.New("unsupported checkpoint version")
)

// BatchRecord is the permanent record of one completed batch: its draw,
// timing, failure status, and one validation result per snippet.
type BatchRecord struct {
	BatchID       string            `json:"batch_id"`
	BatchSize     int               `json:"batch_size"`
	Iteration     int               `json:"iteration"`
	SnippetIDs    []string          `json:"snippet_ids"`
	DispatchedAt  time.Time         `json:"dispatched_at"`
	Duration      time.Duration     `json:"duration"`
	Failed        bool              `json:"failed"`
	FailureReason string            `json:"failure_reason,omitempty"`
	Results       []validate.Result `json:"results"`
}
