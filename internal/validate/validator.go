// Package validate scores candidate transformations against golden
// references using normalized Levenshtein similarity. Validation never
// returns errors past its boundary: anything that goes wrong becomes a
// failed result with an error message, so one bad candidate can never
// abort a run.
package validate

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"ctxbench/internal/config"
)

// Result records the outcome of validating one candidate against one
// snippet's golden reference.
type Result struct {
	SnippetID       string        `json:"snippet_id"`
	IsCorrect       bool          `json:"is_correct"`
	SimilarityScore float64       `json:"similarity_score"`
	EditDistance    int           `json:"edit_distance"`
	Threshold       float64       `json:"threshold"`
	CandidateLength int           `json:"candidate_length"`
	ReferenceLength int           `json:"reference_length"`
	Duration        time.Duration `json:"validation_duration"`
	ErrorMessage    string        `json:"error_message,omitempty"`
}

// Failed builds a failed result carrying only an explanation. Used when
// validation could not run at all (model failure, unparsable reply).
func Failed(snippetID, message string) Result {
	return Result{SnippetID: snippetID, ErrorMessage: message}
}

// ReferenceStore resolves a snippet id to its golden reference content.
type ReferenceStore interface {
	Reference(snippetID string) (string, error)
}

type cacheKey struct {
	snippetID     string
	candidateHash string
}

// Validator scores candidates. Safe for concurrent use; identical
// (snippet, candidate) pairs are served from a cache so retried content
// is never re-scored.
type Validator struct {
	refs      ReferenceStore
	threshold float64
	norm      config.NormalizeConfig

	mu    sync.Mutex
	cache map[cacheKey]Result
}

// New returns a validator over the given reference store.
func New(refs ReferenceStore, threshold float64, norm config.NormalizeConfig) *Validator {
	return &Validator{
		refs:      refs,
		threshold: threshold,
		norm:      norm,
		cache:     make(map[cacheKey]Result),
	}
}

// Validate scores one candidate. Empty candidates and reference lookup
// failures yield is_correct=false with an error message, never an error.
// Calling twice with the same inputs returns the identical result.
func (v *Validator) Validate(candidate, snippetID string) Result {
	key := cacheKey{snippetID: snippetID, candidateHash: hashCandidate(candidate)}

	v.mu.Lock()
	if cached, ok := v.cache[key]; ok {
		v.mu.Unlock()
		return cached
	}
	v.mu.Unlock()

	result := v.score(candidate, snippetID)

	v.mu.Lock()
	v.cache[key] = result
	v.mu.Unlock()
	return result
}

func (v *Validator) score(candidate, snippetID string) Result {
	start := time.Now()
	result := Result{
		SnippetID: snippetID,
		Threshold: v.threshold,
	}

	reference, err := v.refs.Reference(snippetID)
	if err != nil {
		result.ErrorMessage = "golden answer lookup failed: " + err.Error()
		result.Duration = time.Since(start)
		return result
	}

	normCand := Normalize(candidate, v.norm)
	normRef := Normalize(reference, v.norm)
	result.CandidateLength = len([]rune(normCand))
	result.ReferenceLength = len([]rune(normRef))

	if normCand == "" {
		result.ErrorMessage = "empty candidate"
		result.EditDistance = result.ReferenceLength
		result.Duration = time.Since(start)
		return result
	}

	result.SimilarityScore, result.EditDistance = Similarity(normCand, normRef)
	result.IsCorrect = result.SimilarityScore >= v.threshold
	result.Duration = time.Since(start)
	return result
}

// ValidateBatch scores a set of candidates concurrently and returns the
// results ordered by snippet id. workers bounds the parallelism.
func (v *Validator) ValidateBatch(ctx context.Context, candidates map[string]string, workers int) []Result {
	if workers < 1 {
		workers = 1
	}

	results := make([]Result, 0, len(candidates))
	var mu sync.Mutex

	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for id, cand := range candidates {
		g.Go(func() error {
			r := v.Validate(cand, id)
			mu.Lock()
			results = append(results, r)
			mu.Unlock()
			return nil
		})
	}
	// Workers never return errors; Wait only synchronizes.
	_ = g.Wait()

	sort.Slice(results, func(i, j int) bool {
		return results[i].SnippetID < results[j].SnippetID
	})
	return results
}

func hashCandidate(candidate string) string {
	sum := sha256.Sum256([]byte(candidate))
	return hex.EncodeToString(sum[:])
}
