package experiment

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"go.uber.org/zap"

	"ctxbench/internal/golden"
	"ctxbench/internal/model"
)

func openGoldenStore(t *testing.T) *golden.Store {
	t.Helper()
	store, err := golden.Open(filepath.Join(t.TempDir(), "golden.db"), zap.NewNop())
	if err != nil {
		t.Fatalf("golden.Open failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestGenerateGoldenAnswers(t *testing.T) {
	pool, _, cfg := testFixture(t, 6)
	store := openGoldenStore(t)

	var calls atomic.Int64
	n, err := GenerateGoldenAnswers(context.Background(), pool, store, echoClient(&calls), cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("GenerateGoldenAnswers failed: %v", err)
	}
	if n != 6 || calls.Load() != 6 {
		t.Errorf("generated=%d calls=%d, want 6/6", n, calls.Load())
	}

	ans, err := store.Get("snippet_000")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !strings.Contains(ans.ReferenceContent, "snprintf") {
		t.Errorf("reference content not transformed: %q", ans.ReferenceContent)
	}
	if ans.GeneratingModel != cfg.Model.GoldenName {
		t.Errorf("generating model = %q, want %q", ans.GeneratingModel, cfg.Model.GoldenName)
	}
}

func TestGenerateGoldenAnswers_SkipsExisting(t *testing.T) {
	pool, _, cfg := testFixture(t, 4)
	store := openGoldenStore(t)

	pre := golden.Answer{SnippetID: "snippet_001", ReferenceContent: "hand checked", GeneratingModel: "human"}
	if err := store.Put(pre, false); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	var calls atomic.Int64
	n, err := GenerateGoldenAnswers(context.Background(), pool, store, echoClient(&calls), cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("GenerateGoldenAnswers failed: %v", err)
	}
	if n != 3 || calls.Load() != 3 {
		t.Errorf("generated=%d calls=%d, want 3/3", n, calls.Load())
	}

	// The existing answer is untouched.
	ans, _ := store.Get("snippet_001")
	if ans.ReferenceContent != "hand checked" {
		t.Errorf("pre-existing answer was overwritten: %q", ans.ReferenceContent)
	}
}

func TestGenerateGoldenAnswers_ModelFailureAborts(t *testing.T) {
	pool, _, cfg := testFixture(t, 3)
	store := openGoldenStore(t)

	client := model.Func(func(ctx context.Context, prompt string, cfg model.InvokeConfig) (string, error) {
		return "", model.NewInvokeError(model.KindFatal, errors.New("invalid key"))
	})

	_, err := GenerateGoldenAnswers(context.Background(), pool, store, client, cfg, zap.NewNop())
	if err == nil {
		t.Fatal("expected error when the golden model fails")
	}
	if !strings.Contains(err.Error(), "golden generation failed") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestGenerateGoldenAnswers_Resumable(t *testing.T) {
	pool, _, cfg := testFixture(t, 5)
	store := openGoldenStore(t)

	// First pass dies after two answers.
	var calls atomic.Int64
	echo := echoClient(&calls)
	flaky := model.Func(func(ctx context.Context, prompt string, mc model.InvokeConfig) (string, error) {
		if calls.Load() >= 2 {
			return "", model.NewInvokeError(model.KindFatal, errors.New("network down"))
		}
		return echo.Invoke(ctx, prompt, mc)
	})
	if _, err := GenerateGoldenAnswers(context.Background(), pool, store, flaky, cfg, zap.NewNop()); err == nil {
		t.Fatal("expected first pass to fail")
	}
	count, _ := store.Count()
	if count != 2 {
		t.Fatalf("expected 2 answers persisted before the failure, got %d", count)
	}

	// Second pass fills in only what is missing.
	var resumeCalls atomic.Int64
	n, err := GenerateGoldenAnswers(context.Background(), pool, store, echoClient(&resumeCalls), cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("resume pass failed: %v", err)
	}
	if n != 3 || resumeCalls.Load() != 3 {
		t.Errorf("resume generated=%d calls=%d, want 3/3", n, resumeCalls.Load())
	}
	count, _ = store.Count()
	if count != 5 {
		t.Errorf("expected full coverage after resume, got %d", count)
	}

	missing, _ := store.Missing(pool.IDs())
	if len(missing) != 0 {
		t.Errorf("expected no missing answers, got %v", missing)
	}

	if _, err := store.Get(fmt.Sprintf("snippet_%03d", 4)); err != nil {
		t.Errorf("last snippet should be covered: %v", err)
	}
}
