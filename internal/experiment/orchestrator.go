package experiment

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"ctxbench/internal/config"
	"ctxbench/internal/model"
	"ctxbench/internal/sampler"
	"ctxbench/internal/snippet"
	"ctxbench/internal/validate"
)

// ReferenceStore is the orchestrator's view of the golden answer store.
type ReferenceStore interface {
	validate.ReferenceStore
	Missing(ids []string) ([]string, error)
}

// Orchestrator drives a whole run: plan, dispatch, validate, checkpoint.
type Orchestrator struct {
	cfg       *config.Config
	pool      *snippet.Pool
	store     ReferenceStore
	client    model.Client
	ckpt      *CheckpointFile
	validator *validate.Validator
	logger    *zap.Logger

	mu      sync.RWMutex
	state   RunState
	lastErr error
}

// NewOrchestrator wires an orchestrator from its collaborators.
func NewOrchestrator(cfg *config.Config, pool *snippet.Pool, store ReferenceStore, client model.Client, ckpt *CheckpointFile, logger *zap.Logger) *Orchestrator {
	return &Orchestrator{
		cfg:       cfg,
		pool:      pool,
		store:     store,
		client:    client,
		ckpt:      ckpt,
		validator: validate.New(store, cfg.Experiment.SimilarityThreshold, cfg.Normalize),
		logger:    logger,
	}
}

// State returns the current run state.
func (o *Orchestrator) State() RunState {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.state
}

func (o *Orchestrator) setState(s RunState) {
	o.mu.Lock()
	o.state = s
	o.mu.Unlock()
	o.logger.Debug("state transition", zap.String("state", string(s)))
}

func (o *Orchestrator) fail(err error) error {
	o.mu.Lock()
	o.state = StateFailed
	o.lastErr = err
	o.mu.Unlock()
	o.logger.Error("run failed", zap.Error(err))
	return err
}

// Run executes the experiment to completion. Batch-local failures are
// recorded and skipped over; only errors touching shared state (config,
// golden answers, checkpoint I/O) abort the run. Cancelling the context
// stops new dispatches, lets in-flight batches finish and checkpoint,
// then returns the context error.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.setState(StateInitializing)

	if err := o.cfg.Validate(); err != nil {
		return o.fail(fmt.Errorf("configuration invalid: %w", err))
	}
	if o.pool.Len() == 0 {
		return o.fail(fmt.Errorf("snippet pool is empty"))
	}
	missing, err := o.store.Missing(o.pool.IDs())
	if err != nil {
		return o.fail(fmt.Errorf("failed to check golden answers: %w", err))
	}
	if len(missing) > 0 {
		return o.fail(fmt.Errorf("%w: %d of %d (first: %s)",
			ErrMissingGoldenAnswers, len(missing), o.pool.Len(), missing[0]))
	}

	o.setState(StateSampling)
	plan, err := sampler.New(o.cfg.Experiment.RandomSeed).Plan(
		o.pool,
		o.cfg.Experiment.BatchSizes,
		o.cfg.Experiment.IterationsPerSize,
		o.cfg.Experiment.AllowReuse,
	)
	if err != nil {
		return o.fail(fmt.Errorf("sampling failed: %w", err))
	}

	completed := o.ckpt.Completed()
	pending := plan[:0:0]
	for _, b := range plan {
		if !completed[b.ID()] {
			pending = append(pending, b)
		}
	}
	o.logger.Info("run planned",
		zap.String("run_id", o.ckpt.RunID()),
		zap.Int("total_batches", len(plan)),
		zap.Int("already_completed", len(plan)-len(pending)),
		zap.Int("pending", len(pending)))

	if len(pending) == 0 {
		o.setState(StateCompleted)
		return nil
	}

	o.setState(StateDispatching)
	var g errgroup.Group
	g.SetLimit(o.cfg.Experiment.MaxParallelWorkers)
	for _, batch := range pending {
		// Gate new dispatches on cancellation; batches already handed to
		// a worker run on an uncancellable context so they can finish
		// and checkpoint.
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			return o.processBatch(context.WithoutCancel(ctx), batch)
		})
	}
	if err := g.Wait(); err != nil {
		return o.fail(err)
	}
	if err := ctx.Err(); err != nil {
		// Checkpoint is intact; a later resume picks up the rest.
		return o.fail(err)
	}

	o.setState(StateCompleted)
	o.logger.Info("run completed", zap.String("run_id", o.ckpt.RunID()))
	return nil
}

// processBatch runs the dispatch-validate-checkpoint sequence for one
// batch. Only checkpoint I/O errors propagate.
func (o *Orchestrator) processBatch(ctx context.Context, batch sampler.Batch) error {
	start := time.Now()
	rec := BatchRecord{
		BatchID:      batch.ID(),
		BatchSize:    batch.BatchSize,
		Iteration:    batch.Iteration,
		SnippetIDs:   batch.SnippetIDs,
		DispatchedAt: start.UTC(),
	}

	snippets := make([]snippet.Snippet, len(batch.SnippetIDs))
	for i, id := range batch.SnippetIDs {
		s, ok := o.pool.Get(id)
		if !ok {
			// Plan ids always come from the pool; a miss means corruption.
			return fmt.Errorf("batch %s references unknown snippet %s", batch.ID(), id)
		}
		snippets[i] = s
	}

	prompt := BuildBatchPrompt(snippets, "")
	invokeCfg := model.InvokeConfig{
		Model:       o.cfg.Model.Name,
		Temperature: o.cfg.Model.Temperature,
	}
	retryCfg := model.RetryConfig{
		MaxAttempts:    o.cfg.Retry.Attempts,
		InitialBackoff: o.cfg.GetBackoffBase(),
		MaxBackoff:     o.cfg.GetBackoffMax(),
	}

	o.logger.Info("dispatching batch",
		zap.String("batch_id", batch.ID()),
		zap.Int("batch_size", batch.BatchSize))

	reply, err := model.InvokeWithRetry(ctx, o.client, prompt, invokeCfg, retryCfg, o.logger)
	if err != nil {
		return o.recordFailure(rec, start, fmt.Sprintf("model invocation failed: %v", err))
	}

	o.setState(StateValidating)
	candidates, err := ParseBatchResponse(reply, len(batch.SnippetIDs))
	if err != nil {
		return o.recordFailure(rec, start, fmt.Sprintf("response parse failed: %v", err))
	}

	byID := make(map[string]string, len(batch.SnippetIDs))
	for i, id := range batch.SnippetIDs {
		byID[id] = candidates[i]
	}
	rec.Results = o.validator.ValidateBatch(ctx, byID, o.cfg.Experiment.MaxParallelWorkers)
	rec.Duration = time.Since(start)

	o.setState(StateCheckpointing)
	if err := o.ckpt.Append(rec); err != nil {
		return fmt.Errorf("failed to checkpoint batch %s: %w", rec.BatchID, err)
	}

	correct := 0
	for _, r := range rec.Results {
		if r.IsCorrect {
			correct++
		}
	}
	o.logger.Info("batch completed",
		zap.String("batch_id", rec.BatchID),
		zap.Int("correct", correct),
		zap.Int("total", len(rec.Results)),
		zap.Duration("duration", rec.Duration))
	return nil
}

// recordFailure checkpoints a batch whose dispatch or parse failed: the
// batch is marked failed and every snippet gets a failed result, so the
// run can continue and the failure stays visible in the aggregates.
func (o *Orchestrator) recordFailure(rec BatchRecord, start time.Time, reason string) error {
	rec.Failed = true
	rec.FailureReason = reason
	rec.Duration = time.Since(start)
	rec.Results = make([]validate.Result, 0, len(rec.SnippetIDs))
	for _, id := range rec.SnippetIDs {
		rec.Results = append(rec.Results, validate.Failed(id, reason))
	}

	o.logger.Warn("batch failed",
		zap.String("batch_id", rec.BatchID),
		zap.String("reason", reason))

	o.setState(StateCheckpointing)
	if err := o.ckpt.Append(rec); err != nil {
		return fmt.Errorf("failed to checkpoint failed batch %s: %w", rec.BatchID, err)
	}
	return nil
}
