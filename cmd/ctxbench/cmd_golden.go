package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"ctxbench/internal/experiment"
	"ctxbench/internal/golden"
	"ctxbench/internal/model"
	"ctxbench/internal/snippet"
)

var goldenCmd = &cobra.Command{
	Use:   "golden",
	Short: "Generate golden answers for every pool snippet",
	Long: `Generates a golden answer for each snippet that lacks one, using the
configured high-fidelity golden model at batch size one. Snippets that
already have an answer are skipped, so an interrupted pass resumes where
it left off.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

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

		n, err := experiment.GenerateGoldenAnswers(ctx, pool, store, client, cfg, logger)
		if err != nil {
			return fmt.Errorf("generated %d answers before failing: %w", n, err)
		}

		count, err := store.Count()
		if err != nil {
			return err
		}
		fmt.Printf("Generated %d golden answers (%d total for %d snippets)\n", n, count, pool.Len())
		return nil
	},
}
