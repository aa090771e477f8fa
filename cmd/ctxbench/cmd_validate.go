package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"ctxbench/internal/golden"
	"ctxbench/internal/validate"
)

var (
	validateSnippetID string
	validateFile      string
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Score one candidate file against a snippet's golden answer",
	Long: `Validates a candidate transformation from a file against the stored
golden answer for one snippet, using the configured threshold and
normalization. Useful for debugging scores outside a run.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if validateSnippetID == "" || validateFile == "" {
			return fmt.Errorf("both --snippet and --candidate are required")
		}

		candidate, err := os.ReadFile(validateFile)
		if err != nil {
			return fmt.Errorf("failed to read candidate file: %w", err)
		}

		store, err := golden.Open(cfg.Paths.GoldenDB, logger)
		if err != nil {
			return err
		}
		defer store.Close()

		v := validate.New(store, cfg.Experiment.SimilarityThreshold, cfg.Normalize)
		r := v.Validate(string(candidate), validateSnippetID)

		verdict := "FAIL"
		if r.IsCorrect {
			verdict = "PASS"
		}
		fmt.Printf("%s  snippet=%s  similarity=%.4f  distance=%d  threshold=%.2f\n",
			verdict, r.SnippetID, r.SimilarityScore, r.EditDistance, r.Threshold)
		if r.ErrorMessage != "" {
			fmt.Printf("note: %s\n", r.ErrorMessage)
		}
		if !r.IsCorrect {
			os.Exit(1)
		}
		return nil
	},
}

func init() {
	validateCmd.Flags().StringVar(&validateSnippetID, "snippet", "", "Snippet id to validate against")
	validateCmd.Flags().StringVar(&validateFile, "candidate", "", "File holding the candidate transformation")
}
