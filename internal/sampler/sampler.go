// Package sampler draws deterministic snippet batches from a pool.
// Every (batch size, iteration) pair gets its own seeded random stream, so
// a run plan is fully reproducible from the configured seed and no draw
// depends on the order earlier draws happened in.
package sampler

import (
	"errors"
	"fmt"
	"math/rand"

	"ctxbench/internal/snippet"
)

// ErrInsufficientPool is returned when a batch needs more distinct
// snippets than the pool (or the remaining no-reuse window) can supply.
var ErrInsufficientPool = errors.New("snippet pool too small for requested batch size")

// Batch is an ordered draw of snippet ids for a single model request.
type Batch struct {
	BatchSize  int      `json:"batch_size"`
	Iteration  int      `json:"iteration"`
	SnippetIDs []string `json:"snippet_ids"`
}

// ID returns the stable batch identifier, e.g. "b005_i00".
func (b Batch) ID() string {
	return fmt.Sprintf("b%03d_i%02d", b.BatchSize, b.Iteration)
}

// Sampler produces reproducible batch plans for a fixed seed.
type Sampler struct {
	seed int64
}

// New returns a sampler for the given seed.
func New(seed int64) *Sampler {
	return &Sampler{seed: seed}
}

// Draw samples batchSize distinct snippet ids for one (size, iteration)
// pair. exclude holds ids already used in this iteration's no-reuse window;
// pass nil when reuse is allowed.
func (s *Sampler) Draw(pool *snippet.Pool, batchSize, iteration int, exclude map[string]bool) (Batch, error) {
	if batchSize < 1 {
		return Batch{}, fmt.Errorf("batch size must be >= 1, got %d", batchSize)
	}

	ids := pool.IDs()
	if len(exclude) > 0 {
		remaining := ids[:0:0]
		for _, id := range ids {
			if !exclude[id] {
				remaining = append(remaining, id)
			}
		}
		ids = remaining
	}
	if batchSize > len(ids) {
		return Batch{}, fmt.Errorf("%w: need %d, have %d", ErrInsufficientPool, batchSize, len(ids))
	}

	rng := rand.New(rand.NewSource(mixSeed(s.seed, batchSize, iteration)))
	perm := rng.Perm(len(ids))

	picked := make([]string, batchSize)
	for i := 0; i < batchSize; i++ {
		picked[i] = ids[perm[i]]
	}
	return Batch{BatchSize: batchSize, Iteration: iteration, SnippetIDs: picked}, nil
}

// Plan produces the full batch plan for the run: one batch per
// (size, iteration) pair, sizes in the given order, iterations innermost.
//
// When allowReuse is false, batches within one iteration draw from a
// shrinking window so no snippet appears twice; once the window cannot
// cover the next batch it resets to the full pool. A batch size larger
// than the whole pool is ErrInsufficientPool either way.
func (s *Sampler) Plan(pool *snippet.Pool, batchSizes []int, iterations int, allowReuse bool) ([]Batch, error) {
	if pool.Len() == 0 {
		return nil, fmt.Errorf("%w: pool is empty", ErrInsufficientPool)
	}

	var batches []Batch
	for iter := 0; iter < iterations; iter++ {
		used := make(map[string]bool)
		for _, size := range batchSizes {
			if size > pool.Len() {
				return nil, fmt.Errorf("%w: need %d, pool has %d", ErrInsufficientPool, size, pool.Len())
			}

			exclude := used
			if allowReuse {
				exclude = nil
			} else if pool.Len()-len(used) < size {
				// No-reuse window exhausted; start a fresh one.
				used = make(map[string]bool)
				exclude = used
			}

			batch, err := s.Draw(pool, size, iter, exclude)
			if err != nil {
				return nil, err
			}
			if !allowReuse {
				for _, id := range batch.SnippetIDs {
					used[id] = true
				}
			}
			batches = append(batches, batch)
		}
	}
	return batches, nil
}

// mixSeed folds the batch size and iteration into the base seed with a
// splitmix64-style finalizer so adjacent pairs get unrelated streams.
func mixSeed(seed int64, batchSize, iteration int) int64 {
	h := uint64(seed)
	h ^= uint64(batchSize) * 0x9e3779b97f4a7c15
	h ^= uint64(iteration) * 0xbf58476d1ce4e5b9
	h = (h ^ (h >> 30)) * 0xbf58476d1ce4e5b9
	h = (h ^ (h >> 27)) * 0x94d049bb133111eb
	return int64(h ^ (h >> 31))
}
