// Package report renders run summaries for humans: an aligned text table
// for the terminal and a markdown table for write-ups. Rendering is pure;
// the aggregation it displays is recomputed from the checkpoint on demand.
package report

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"ctxbench/internal/experiment"
)

// Render formats a run summary as an aligned text table.
func Render(s experiment.RunSummary) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Run %s\n", s.RunID)
	fmt.Fprintf(&b, "Batches: %d (%d failed)   Snippets: %d   Correct: %d   Wall time: %s\n\n",
		s.TotalBatches, s.FailedBatches, s.TotalSnippets, s.TotalCorrect, s.TotalDuration)

	w := tabwriter.NewWriter(&b, 2, 4, 2, ' ', 0)
	fmt.Fprintln(w, "BATCH SIZE\tBATCHES\tFAILED\tSNIPPETS\tCORRECT\tSUCCESS\tMEAN SIM\tMIN\tMAX\tMEAN DIST\tVS SIZE 1")
	baseline := baselineRate(s)
	for _, st := range s.Stats {
		fmt.Fprintf(w, "%d\t%d\t%d\t%d\t%d\t%.1f%%\t%.3f\t%.3f\t%.3f\t%.1f\t%s\n",
			st.BatchSize, st.Batches, st.FailedBatches, st.Snippets, st.Correct,
			st.SuccessRate*100, st.MeanSimilarity, st.MinSimilarity, st.MaxSimilarity,
			st.MeanEditDistance, delta(st, baseline))
	}
	w.Flush()
	return b.String()
}

// Markdown formats a run summary as a markdown table.
func Markdown(s experiment.RunSummary) string {
	var b strings.Builder

	fmt.Fprintf(&b, "## Run `%s`\n\n", s.RunID)
	fmt.Fprintf(&b, "%d batches (%d failed), %d snippets validated, %d correct, %s wall time.\n\n",
		s.TotalBatches, s.FailedBatches, s.TotalSnippets, s.TotalCorrect, s.TotalDuration)

	b.WriteString("| Batch size | Batches | Failed | Snippets | Correct | Success | Mean sim | Min | Max | Mean dist | vs size 1 |\n")
	b.WriteString("|---:|---:|---:|---:|---:|---:|---:|---:|---:|---:|---:|\n")
	baseline := baselineRate(s)
	for _, st := range s.Stats {
		fmt.Fprintf(&b, "| %d | %d | %d | %d | %d | %.1f%% | %.3f | %.3f | %.3f | %.1f | %s |\n",
			st.BatchSize, st.Batches, st.FailedBatches, st.Snippets, st.Correct,
			st.SuccessRate*100, st.MeanSimilarity, st.MinSimilarity, st.MaxSimilarity,
			st.MeanEditDistance, delta(st, baseline))
	}
	return b.String()
}

// baselineRate returns the size-1 success rate, or -1 when the run had
// no size-1 batches to compare against.
func baselineRate(s experiment.RunSummary) float64 {
	for _, st := range s.Stats {
		if st.BatchSize == 1 && st.Snippets > 0 {
			return st.SuccessRate
		}
	}
	return -1
}

func delta(st experiment.BatchSizeStats, baseline float64) string {
	if baseline < 0 {
		return "n/a"
	}
	if st.BatchSize == 1 {
		return "baseline"
	}
	return fmt.Sprintf("%+.1fpp", (st.SuccessRate-baseline)*100)
}
