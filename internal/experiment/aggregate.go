package experiment

import (
	"sort"
	"time"
)

// BatchSizeStats aggregates all validation results for one batch size.
type BatchSizeStats struct {
	BatchSize         int           `json:"batch_size"`
	Batches           int           `json:"batches"`
	FailedBatches     int           `json:"failed_batches"`
	Snippets          int           `json:"snippets"`
	Correct           int           `json:"correct"`
	SuccessRate       float64       `json:"success_rate"`
	MeanSimilarity    float64       `json:"mean_similarity"`
	MinSimilarity     float64       `json:"min_similarity"`
	MaxSimilarity     float64       `json:"max_similarity"`
	MeanEditDistance  float64       `json:"mean_edit_distance"`
	MeanBatchDuration time.Duration `json:"mean_batch_duration"`
}

// RunSummary is the full aggregation of a run, recomputable at any time
// as a pure fold over the checkpoint's batch records.
type RunSummary struct {
	RunID         string           `json:"run_id"`
	ConfigHash    string           `json:"config_hash"`
	TotalBatches  int              `json:"total_batches"`
	FailedBatches int              `json:"failed_batches"`
	TotalSnippets int              `json:"total_snippets"`
	TotalCorrect  int              `json:"total_correct"`
	TotalDuration time.Duration    `json:"total_duration"`
	Stats         []BatchSizeStats `json:"stats"`
}

// Summarize folds batch records into per-batch-size statistics. Failed
// batches count toward attempts; their results score as incorrect.
func Summarize(runID, configHash string, records []BatchRecord) RunSummary {
	summary := RunSummary{RunID: runID, ConfigHash: configHash}
	bySize := make(map[int]*BatchSizeStats)
	simSums := make(map[int]float64)
	distSums := make(map[int]float64)
	durSums := make(map[int]time.Duration)

	for _, rec := range records {
		stats, ok := bySize[rec.BatchSize]
		if !ok {
			stats = &BatchSizeStats{BatchSize: rec.BatchSize, MinSimilarity: 1}
			bySize[rec.BatchSize] = stats
		}

		stats.Batches++
		summary.TotalBatches++
		summary.TotalDuration += rec.Duration
		durSums[rec.BatchSize] += rec.Duration
		if rec.Failed {
			stats.FailedBatches++
			summary.FailedBatches++
		}

		for _, r := range rec.Results {
			stats.Snippets++
			summary.TotalSnippets++
			if r.IsCorrect {
				stats.Correct++
				summary.TotalCorrect++
			}
			simSums[rec.BatchSize] += r.SimilarityScore
			distSums[rec.BatchSize] += float64(r.EditDistance)
			if r.SimilarityScore < stats.MinSimilarity {
				stats.MinSimilarity = r.SimilarityScore
			}
			if r.SimilarityScore > stats.MaxSimilarity {
				stats.MaxSimilarity = r.SimilarityScore
			}
		}
	}

	for size, stats := range bySize {
		if stats.Snippets > 0 {
			stats.SuccessRate = float64(stats.Correct) / float64(stats.Snippets)
			stats.MeanSimilarity = simSums[size] / float64(stats.Snippets)
			stats.MeanEditDistance = distSums[size] / float64(stats.Snippets)
		} else {
			stats.MinSimilarity = 0
		}
		if stats.Batches > 0 {
			stats.MeanBatchDuration = durSums[size] / time.Duration(stats.Batches)
		}
		summary.Stats = append(summary.Stats, *stats)
	}

	sort.Slice(summary.Stats, func(i, j int) bool {
		return summary.Stats[i].BatchSize < summary.Stats[j].BatchSize
	})
	return summary
}
