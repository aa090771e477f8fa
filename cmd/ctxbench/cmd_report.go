package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"ctxbench/internal/experiment"
	"ctxbench/internal/report"
)

var reportMarkdown bool

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Aggregate and print a run's results from its checkpoint",
	Long: `Recomputes the per-batch-size statistics from the checkpoint on disk
and prints them. The aggregation is a pure fold over the recorded batches,
so it can be re-run at any time, including mid-experiment.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		cp, err := experiment.ReadCheckpoint(cfg.Paths.Checkpoint)
		if err != nil {
			return err
		}

		summary := experiment.Summarize(cp.RunID, cp.ConfigHash, cp.Batches)
		if reportMarkdown {
			fmt.Print(report.Markdown(summary))
		} else {
			fmt.Print(report.Render(summary))
		}
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show checkpoint progress for the configured run",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		cp, err := experiment.ReadCheckpoint(cfg.Paths.Checkpoint)
		if err != nil {
			return err
		}

		planned := len(cfg.Experiment.BatchSizes) * cfg.Experiment.IterationsPerSize
		failed := 0
		for _, rec := range cp.Batches {
			if rec.Failed {
				failed++
			}
		}

		fmt.Printf("Run:        %s\n", cp.RunID)
		fmt.Printf("Created:    %s\n", cp.CreatedAt.Format("2006-01-02 15:04:05 MST"))
		fmt.Printf("Updated:    %s\n", cp.UpdatedAt.Format("2006-01-02 15:04:05 MST"))
		fmt.Printf("Batches:    %d/%d recorded (%d failed)\n", len(cp.Batches), planned, failed)
		if cp.ConfigHash != cfg.Hash() {
			fmt.Println("Warning:    checkpoint was written under a different configuration")
		}
		return nil
	},
}

func init() {
	reportCmd.Flags().BoolVar(&reportMarkdown, "markdown", false, "Emit a markdown table instead of plain text")
}
