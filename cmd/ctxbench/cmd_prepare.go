package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"ctxbench/internal/snippet"
)

var (
	prepareRepo    string
	preparePattern string
	prepareContext int
	prepareGlobs   []string
)

var prepareCmd = &cobra.Command{
	Use:   "prepare",
	Short: "Extract a snippet pool from a git repository",
	Long: `Runs git grep over a repository and turns each contiguous match block
into a pool snippet. The pool JSON records the repo, commit, and pattern
so an experiment's inputs stay reproducible.

Example:

  ctxbench prepare --repo ./rise --pattern sprintf --context 5 \
      --glob '*.c' --glob '*.cc' --glob '*.h'`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if prepareRepo == "" {
			return fmt.Errorf("--repo is required")
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		pool, meta, err := snippet.Extract(ctx, snippet.ExtractOptions{
			RepoDir:      prepareRepo,
			Pattern:      preparePattern,
			ContextLines: prepareContext,
			Globs:        prepareGlobs,
		})
		if err != nil {
			return err
		}

		if err := snippet.SavePool(cfg.Paths.SnippetPool, pool, meta); err != nil {
			return err
		}

		logger.Info("snippet pool written",
			zap.String("path", cfg.Paths.SnippetPool),
			zap.String("commit", meta.Commit),
			zap.Int("snippets", pool.Len()))
		fmt.Printf("Extracted %d snippets from %s into %s\n", pool.Len(), prepareRepo, cfg.Paths.SnippetPool)
		return nil
	},
}

func init() {
	prepareCmd.Flags().StringVar(&prepareRepo, "repo", "", "Git repository to extract snippets from")
	prepareCmd.Flags().StringVar(&preparePattern, "pattern", "sprintf", "Pattern passed to git grep")
	prepareCmd.Flags().IntVar(&prepareContext, "context", 5, "Context lines around each match")
	prepareCmd.Flags().StringSliceVar(&prepareGlobs, "glob", []string{"*.c", "*.cc", "*.cpp", "*.h"}, "Pathspec globs limiting the search")
}
