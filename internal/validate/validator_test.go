package validate

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/google/go-cmp/cmp"

	"ctxbench/internal/config"
)

// mapStore is an in-memory ReferenceStore that counts lookups.
type mapStore struct {
	refs    map[string]string
	lookups atomic.Int64
}

func (m *mapStore) Reference(snippetID string) (string, error) {
	m.lookups.Add(1)
	ref, ok := m.refs[snippetID]
	if !ok {
		return "", errors.New("golden answer not found")
	}
	return ref, nil
}

func defaultNorm() config.NormalizeConfig {
	return config.NormalizeConfig{CollapseWhitespace: true, StripTrailing: true}
}

func TestValidate_IdenticalCandidate(t *testing.T) {
	store := &mapStore{refs: map[string]string{
		"snippet_000": `snprintf(buf, sizeof(buf), "%d", a);`,
	}}
	v := New(store, 0.80, defaultNorm())

	r := v.Validate(`snprintf(buf, sizeof(buf), "%d", a);`, "snippet_000")
	if !r.IsCorrect {
		t.Error("identical candidate should pass")
	}
	if r.SimilarityScore != 1.0 || r.EditDistance != 0 {
		t.Errorf("score=%g dist=%d, want 1.0/0", r.SimilarityScore, r.EditDistance)
	}
	if r.Threshold != 0.80 {
		t.Errorf("threshold = %g, want 0.80", r.Threshold)
	}
}

func TestValidate_HalfAlteredReference(t *testing.T) {
	// 20-char reference, candidate altered in 10 positions.
	store := &mapStore{refs: map[string]string{
		"snippet_000": "aaaaaaaaaacccccccccc",
	}}
	v := New(store, 0.80, defaultNorm())

	r := v.Validate("aaaaaaaaaabbbbbbbbbb", "snippet_000")
	if r.IsCorrect {
		t.Error("half-altered candidate must fail at threshold 0.80")
	}
	if math.Abs(r.SimilarityScore-0.5) > 1e-9 {
		t.Errorf("score = %g, want 0.5", r.SimilarityScore)
	}
}

func TestValidate_EmptyCandidate(t *testing.T) {
	store := &mapStore{refs: map[string]string{"snippet_000": "ref"}}
	v := New(store, 0.80, defaultNorm())

	r := v.Validate("", "snippet_000")
	if r.IsCorrect {
		t.Error("empty candidate must fail")
	}
	if r.ErrorMessage == "" {
		t.Error("empty candidate should carry an error message")
	}
}

func TestValidate_UnknownSnippet(t *testing.T) {
	store := &mapStore{refs: map[string]string{}}
	v := New(store, 0.80, defaultNorm())

	r := v.Validate("anything", "snippet_404")
	if r.IsCorrect {
		t.Error("missing reference must fail")
	}
	if !strings.Contains(r.ErrorMessage, "lookup failed") {
		t.Errorf("unexpected error message: %q", r.ErrorMessage)
	}
}

func TestValidate_Idempotent(t *testing.T) {
	store := &mapStore{refs: map[string]string{"snippet_000": "reference text"}}
	v := New(store, 0.80, defaultNorm())

	a := v.Validate("reference test", "snippet_000")
	b := v.Validate("reference test", "snippet_000")
	if diff := cmp.Diff(a, b); diff != "" {
		t.Errorf("repeated validation should return the identical result:\n%s", diff)
	}
	if store.lookups.Load() != 1 {
		t.Errorf("expected 1 reference lookup (cache hit on second call), got %d", store.lookups.Load())
	}
}

func TestValidate_NormalizationBridgesWhitespace(t *testing.T) {
	store := &mapStore{refs: map[string]string{
		"snippet_000": "int  a =  1;\t\n",
	}}
	v := New(store, 1.0, defaultNorm())

	r := v.Validate("int a = 1;", "snippet_000")
	if !r.IsCorrect {
		t.Errorf("whitespace-only difference should normalize away, score=%g", r.SimilarityScore)
	}
}

func TestValidateBatch(t *testing.T) {
	refs := make(map[string]string)
	candidates := make(map[string]string)
	for i := 0; i < 12; i++ {
		id := fmt.Sprintf("snippet_%03d", i)
		refs[id] = fmt.Sprintf("reference %d", i)
		if i%2 == 0 {
			candidates[id] = refs[id]
		} else {
			candidates[id] = "completely unrelated content"
		}
	}
	store := &mapStore{refs: refs}
	v := New(store, 0.80, defaultNorm())

	results := v.ValidateBatch(context.Background(), candidates, 4)
	if len(results) != 12 {
		t.Fatalf("expected 12 results, got %d", len(results))
	}
	for i := 1; i < len(results); i++ {
		if results[i-1].SnippetID >= results[i].SnippetID {
			t.Fatal("results not sorted by snippet id")
		}
	}
	correct := 0
	for _, r := range results {
		if r.IsCorrect {
			correct++
		}
	}
	if correct != 6 {
		t.Errorf("expected 6 correct results, got %d", correct)
	}
}
