package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"ctxbench/internal/config"
	"ctxbench/internal/experiment"
	"ctxbench/internal/golden"
	"ctxbench/internal/model"
	"ctxbench/internal/snippet"
)

var runForce bool

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start a fresh experiment run",
	Long: `Starts a new experiment run from the configured snippet pool.

Refuses to clobber an existing checkpoint unless --force is given; use
"ctxbench resume" to continue an interrupted run instead.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		if _, statErr := os.Stat(cfg.Paths.Checkpoint); statErr == nil && !runForce {
			return fmt.Errorf("checkpoint %s already exists; use 'ctxbench resume' or --force", cfg.Paths.Checkpoint)
		}

		ckpt, err := experiment.CreateCheckpointFile(cfg.Paths.Checkpoint, cfg.Hash())
		if err != nil {
			return err
		}
		return executeRun(cfg, ckpt)
	},
}

var resumeCmd = &cobra.Command{
	Use:   "resume",
	Short: "Resume an interrupted experiment run",
	Long: `Continues a run from its checkpoint, skipping every batch already
recorded. Fails if the checkpoint was written under a different
experiment configuration.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		ckpt, err := experiment.OpenCheckpointFile(cfg.Paths.Checkpoint, cfg.Hash())
		if err != nil {
			if errors.Is(err, experiment.ErrCheckpointMismatch) {
				return fmt.Errorf("%w\nThe checkpoint belongs to a different configuration; move it aside or restore the original config", err)
			}
			return err
		}
		return executeRun(cfg, ckpt)
	},
}

// executeRun wires the collaborators and drives the orchestrator,
// converting SIGINT/SIGTERM into graceful cancellation.
func executeRun(cfg *config.Config, ckpt *experiment.CheckpointFile) error {
	pool, err := snippet.LoadPool(cfg.Paths.SnippetPool)
	if err != nil {
		return err
	}

	store, err := golden.Open(cfg.Paths.GoldenDB, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := model.NewGeminiClient(ctx, cfg.Model.APIKey, cfg.GetRequestTimeout(), logger)
	if err != nil {
		return err
	}

	orch := experiment.NewOrchestrator(cfg, pool, store, client, ckpt, logger)
	if err := orch.Run(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			return fmt.Errorf("run interrupted; completed batches are checkpointed, use 'ctxbench resume' to continue")
		}
		return err
	}

	summary := experiment.Summarize(ckpt.RunID(), cfg.Hash(), ckpt.Records())
	logger.Info("experiment finished",
		zap.String("run_id", summary.RunID),
		zap.Int("batches", summary.TotalBatches),
		zap.Int("correct", summary.TotalCorrect),
		zap.Int("snippets", summary.TotalSnippets))
	return nil
}

func init() {
	runCmd.Flags().BoolVar(&runForce, "force", false, "Overwrite an existing checkpoint")
}
