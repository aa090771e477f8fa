package experiment

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"ctxbench/internal/config"
	"ctxbench/internal/golden"
	"ctxbench/internal/model"
	"ctxbench/internal/snippet"
)

// GenerateGoldenAnswers produces a golden answer for every pool snippet
// that lacks one, at batch size one with the high-fidelity golden model.
// Already-stored answers are skipped, so an interrupted generation pass
// resumes where it left off. Returns the number generated.
func GenerateGoldenAnswers(ctx context.Context, pool *snippet.Pool, store *golden.Store, client model.Client, cfg *config.Config, logger *zap.Logger) (int, error) {
	missing, err := store.Missing(pool.IDs())
	if err != nil {
		return 0, fmt.Errorf("failed to check existing golden answers: %w", err)
	}
	logger.Info("golden answer generation",
		zap.Int("pool", pool.Len()),
		zap.Int("missing", len(missing)))

	modelName := cfg.Model.GoldenName
	if modelName == "" {
		modelName = cfg.Model.Name
	}
	invokeCfg := model.InvokeConfig{Model: modelName}
	retryCfg := model.RetryConfig{
		MaxAttempts:    cfg.Retry.Attempts,
		InitialBackoff: cfg.GetBackoffBase(),
		MaxBackoff:     cfg.GetBackoffMax(),
	}

	generated := 0
	for _, id := range missing {
		if err := ctx.Err(); err != nil {
			return generated, err
		}

		s, ok := pool.Get(id)
		if !ok {
			return generated, fmt.Errorf("missing list references unknown snippet %s", id)
		}

		prompt := BuildSinglePrompt(s, "")
		reply, err := model.InvokeWithRetry(ctx, client, prompt, invokeCfg, retryCfg, logger)
		if err != nil {
			return generated, fmt.Errorf("golden generation failed for %s: %w", id, err)
		}

		candidates, err := ParseBatchResponse(reply, 1)
		if err != nil || candidates[0] == "" {
			return generated, fmt.Errorf("golden generation for %s returned no code", id)
		}

		ans := golden.Answer{
			SnippetID:        id,
			ReferenceContent: candidates[0],
			GeneratingModel:  modelName,
		}
		if err := store.Put(ans, false); err != nil {
			// A concurrent pass already stored this one; keep going.
			if errors.Is(err, golden.ErrAlreadyExists) {
				continue
			}
			return generated, fmt.Errorf("failed to store golden answer %s: %w", id, err)
		}

		generated++
		if generated%10 == 0 {
			logger.Info("golden answer progress",
				zap.Int("generated", generated),
				zap.Int("remaining", len(missing)-generated))
		}
	}

	logger.Info("golden answer generation finished", zap.Int("generated", generated))
	return generated, nil
}
