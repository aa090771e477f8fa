// ctxbench measures how a generative model's accuracy on independent code
// transformation tasks degrades as more tasks are packed into one request.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"ctxbench/internal/config"
)

var (
	verbose    bool
	configPath string
	logger     *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "ctxbench",
	Short: "Batch-size degradation experiments for code transformation models",
	Long: `ctxbench runs controlled experiments that pack N independent code
transformation tasks into a single model request and measure how per-task
accuracy degrades as N grows.

A run samples snippets from a fixed pool into batches, dispatches each batch
as one request, validates every returned transformation against a golden
answer by normalized Levenshtein similarity, and checkpoints after every
batch so interrupted runs resume without repeating work.

Typical workflow:

  ctxbench prepare --repo ./target-repo       # extract the snippet pool
  ctxbench golden                             # generate golden answers
  ctxbench run                                # run the experiment
  ctxbench report                             # aggregate the results`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zapCfg := zap.NewProductionConfig()
		if verbose {
			zapCfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zapCfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

// loadConfig loads the configuration for the current invocation.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration invalid: %w", err)
	}
	return cfg, nil
}

func main() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "ctxbench.yaml", "Path to configuration file")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(resumeCmd)
	rootCmd.AddCommand(goldenCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(prepareCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
