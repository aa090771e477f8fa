package experiment

import (
	"math"
	"testing"
	"time"

	"ctxbench/internal/validate"
)

func TestSummarize(t *testing.T) {
	records := []BatchRecord{
		{
			BatchID: "b001_i00", BatchSize: 1, Duration: 2 * time.Second,
			Results: []validate.Result{
				{SnippetID: "snippet_000", IsCorrect: true, SimilarityScore: 1.0},
			},
		},
		{
			BatchID: "b001_i01", BatchSize: 1, Duration: 4 * time.Second,
			Results: []validate.Result{
				{SnippetID: "snippet_001", IsCorrect: true, SimilarityScore: 0.9, EditDistance: 2},
			},
		},
		{
			BatchID: "b005_i00", BatchSize: 5, Duration: 10 * time.Second,
			Failed: true, FailureReason: "model invocation failed",
			Results: []validate.Result{
				{SnippetID: "snippet_000"},
				{SnippetID: "snippet_001"},
				{SnippetID: "snippet_002"},
				{SnippetID: "snippet_003"},
				{SnippetID: "snippet_004"},
			},
		},
	}

	s := Summarize("run-1", "hash", records)

	if s.TotalBatches != 3 || s.FailedBatches != 1 {
		t.Errorf("batches=%d failed=%d, want 3/1", s.TotalBatches, s.FailedBatches)
	}
	if s.TotalSnippets != 7 || s.TotalCorrect != 2 {
		t.Errorf("snippets=%d correct=%d, want 7/2", s.TotalSnippets, s.TotalCorrect)
	}
	if s.TotalDuration != 16*time.Second {
		t.Errorf("total duration = %v, want 16s", s.TotalDuration)
	}

	if len(s.Stats) != 2 {
		t.Fatalf("expected stats for 2 batch sizes, got %d", len(s.Stats))
	}
	if s.Stats[0].BatchSize != 1 || s.Stats[1].BatchSize != 5 {
		t.Fatal("stats should be sorted by batch size")
	}

	size1 := s.Stats[0]
	if size1.Batches != 2 || size1.Snippets != 2 || size1.Correct != 2 {
		t.Errorf("size1 counts: %+v", size1)
	}
	if size1.SuccessRate != 1.0 {
		t.Errorf("size1 success rate = %g", size1.SuccessRate)
	}
	if math.Abs(size1.MeanSimilarity-0.95) > 1e-9 {
		t.Errorf("size1 mean similarity = %g, want 0.95", size1.MeanSimilarity)
	}
	if size1.MinSimilarity != 0.9 || size1.MaxSimilarity != 1.0 {
		t.Errorf("size1 min/max = %g/%g", size1.MinSimilarity, size1.MaxSimilarity)
	}
	if size1.MeanBatchDuration != 3*time.Second {
		t.Errorf("size1 mean duration = %v", size1.MeanBatchDuration)
	}

	size5 := s.Stats[1]
	if size5.SuccessRate != 0 || size5.FailedBatches != 1 {
		t.Errorf("size5 stats: %+v", size5)
	}
}

func TestSummarize_Empty(t *testing.T) {
	s := Summarize("run-1", "hash", nil)
	if s.TotalBatches != 0 || len(s.Stats) != 0 {
		t.Errorf("empty fold should be empty: %+v", s)
	}
}
