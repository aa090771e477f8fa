package experiment

import (
	"errors"
	"strings"
	"testing"

	"ctxbench/internal/snippet"
)

func TestParseBatchResponse_WellFormed(t *testing.T) {
	reply := "=== TASK 1 ===\n```c\nsnprintf(a, sizeof(a), \"%d\", x);\n```\n" +
		"=== TASK 2 ===\n```c\nsnprintf(b, sizeof(b), \"%s\", y);\n```\n"

	candidates, err := ParseBatchResponse(reply, 2)
	if err != nil {
		t.Fatalf("ParseBatchResponse failed: %v", err)
	}
	if candidates[0] != `snprintf(a, sizeof(a), "%d", x);` {
		t.Errorf("task 1 = %q", candidates[0])
	}
	if candidates[1] != `snprintf(b, sizeof(b), "%s", y);` {
		t.Errorf("task 2 = %q", candidates[1])
	}
}

func TestParseBatchResponse_FormatVariants(t *testing.T) {
	tests := []struct {
		name  string
		reply string
	}{
		{"markdown heading", "## TASK 1\n```c\ncode();\n```"},
		{"lowercase with colon", "task 1:\n```c\ncode();\n```"},
		{"bare fence-less", "TASK 1\ncode();"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			candidates, err := ParseBatchResponse(tt.reply, 1)
			if err != nil {
				t.Fatalf("ParseBatchResponse failed: %v", err)
			}
			if strings.TrimSpace(candidates[0]) != "code();" {
				t.Errorf("candidate = %q", candidates[0])
			}
		})
	}
}

func TestParseBatchResponse_SkippedTask(t *testing.T) {
	// Model answered tasks 1 and 3, silently dropped 2.
	reply := "=== TASK 1 ===\n```c\none();\n```\n=== TASK 3 ===\n```c\nthree();\n```"

	candidates, err := ParseBatchResponse(reply, 3)
	if err != nil {
		t.Fatalf("ParseBatchResponse failed: %v", err)
	}
	if candidates[0] != "one();" || candidates[2] != "three();" {
		t.Errorf("candidates = %q", candidates)
	}
	if candidates[1] != "" {
		t.Errorf("skipped task should be empty, got %q", candidates[1])
	}
}

func TestParseBatchResponse_Garbage(t *testing.T) {
	_, err := ParseBatchResponse("I cannot help with that request.", 3)
	if !errors.Is(err, ErrParse) {
		t.Errorf("expected ErrParse, got %v", err)
	}
}

func TestParseBatchResponse_SingleTaskFallback(t *testing.T) {
	// Batch size 1 accepts a bare fenced reply with no TASK framing.
	candidates, err := ParseBatchResponse("```c\nsnprintf(a, n, \"%d\", x);\n```", 1)
	if err != nil {
		t.Fatalf("ParseBatchResponse failed: %v", err)
	}
	if candidates[0] != `snprintf(a, n, "%d", x);` {
		t.Errorf("candidate = %q", candidates[0])
	}
}

func TestParseBatchResponse_OutOfRangeTaskIgnored(t *testing.T) {
	reply := "=== TASK 1 ===\n```c\none();\n```\n=== TASK 9 ===\n```c\nnine();\n```"
	candidates, err := ParseBatchResponse(reply, 2)
	if err != nil {
		t.Fatalf("ParseBatchResponse failed: %v", err)
	}
	if candidates[0] != "one();" || candidates[1] != "" {
		t.Errorf("candidates = %q", candidates)
	}
}

func TestStripCodeFence(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"```c\ncode();\n```", "code();"},
		{"```\ncode();\n```", "code();"},
		{"prose\n```c\ncode();\n```\nmore prose", "code();"},
		{"  bare text  ", "bare text"},
	}
	for _, tt := range tests {
		if got := StripCodeFence(tt.in); got != tt.want {
			t.Errorf("StripCodeFence(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestBuildBatchPrompt_RoundTrip(t *testing.T) {
	snippets := []snippet.Snippet{
		{ID: "snippet_000", FilePath: "a.c", Content: []string{`sprintf(a, "%d", x);`}},
		{ID: "snippet_001", FilePath: "b.c", Content: []string{`sprintf(b, "%s", y);`}},
	}

	prompt := BuildBatchPrompt(snippets, "")
	if !strings.Contains(prompt, "=== TASK 1 ===") || !strings.Contains(prompt, "=== TASK 2 ===") {
		t.Error("prompt should number every task")
	}
	if !strings.Contains(prompt, "snprintf") {
		t.Error("prompt should state the transformation")
	}
	if !strings.Contains(prompt, `sprintf(b, "%s", y);`) {
		t.Error("prompt should embed snippet content")
	}

	// The framing the prompt demands is the framing the parser accepts.
	echo := "=== TASK 1 ===\n```c\nX\n```\n=== TASK 2 ===\n```c\nY\n```"
	candidates, err := ParseBatchResponse(echo, 2)
	if err != nil || candidates[0] != "X" || candidates[1] != "Y" {
		t.Errorf("contract round trip failed: %q, %v", candidates, err)
	}
}
