package snippet

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// git grep -n output line shapes:
//
//	matched:   file.c:641:   sprintf(buf, ...
//	context:   file.c-640-   char buf[29];
//	separator: --
var (
	matchedLineRe = regexp.MustCompile(`^[^:]+:\d+:`)
	contextLineRe = regexp.MustCompile(`^[^:]+-\d+-`)
)

// ParseGitGrep parses `git grep -n --context=N` output into snippets.
// Each contiguous block between "--" separators becomes one snippet.
// Lines that match neither shape are an error: grep output is machine
// generated and anything unexpected means the invocation was wrong.
func ParseGitGrep(output string) ([]Snippet, error) {
	var snippets []Snippet
	var cur *Snippet

	flush := func() {
		if cur != nil {
			snippets = append(snippets, *cur)
			cur = nil
		}
	}

	for _, line := range strings.Split(strings.TrimSpace(output), "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		if strings.TrimSpace(line) == "--" {
			flush()
			continue
		}

		var file, content string
		var lineno int
		var matched bool
		switch {
		case matchedLineRe.MatchString(line):
			parts := strings.SplitN(line, ":", 3)
			file, content = parts[0], parts[2]
			lineno, _ = strconv.Atoi(parts[1])
			matched = true
		case contextLineRe.MatchString(line):
			parts := strings.SplitN(line, "-", 3)
			file, content = parts[0], parts[2]
			lineno, _ = strconv.Atoi(parts[1])
		default:
			return nil, fmt.Errorf("unrecognized git grep line: %q", line)
		}

		if cur == nil {
			cur = &Snippet{FilePath: file}
		}
		cur.Content = append(cur.Content, content)
		if matched {
			cur.MatchedLines = append(cur.MatchedLines, lineno)
		} else {
			cur.ContextLines = append(cur.ContextLines, lineno)
		}
	}
	flush()

	for i := range snippets {
		snippets[i].ID = fmt.Sprintf("snippet_%03d", i)
	}
	return snippets, nil
}

// ExtractOptions configures snippet extraction from a git repository.
type ExtractOptions struct {
	RepoDir      string
	Pattern      string
	ContextLines int
	Globs        []string
}

// Extract runs git grep in the repository and parses the output into a
// pool, recording the repo head commit in the metadata.
func Extract(ctx context.Context, opts ExtractOptions) (*Pool, PoolMetadata, error) {
	if opts.Pattern == "" {
		return nil, PoolMetadata{}, fmt.Errorf("extract: empty pattern")
	}
	if opts.ContextLines < 0 {
		return nil, PoolMetadata{}, fmt.Errorf("extract: negative context lines")
	}

	args := []string{"grep", "-n", fmt.Sprintf("--context=%d", opts.ContextLines), opts.Pattern}
	if len(opts.Globs) > 0 {
		args = append(args, "--")
		args = append(args, opts.Globs...)
	}

	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = opts.RepoDir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		// Exit status 1 means no matches; everything else is a failure.
		if exitErr, ok := err.(*exec.ExitError); ok && exitErr.ExitCode() == 1 {
			return nil, PoolMetadata{}, fmt.Errorf("extract: no matches for %q in %s", opts.Pattern, opts.RepoDir)
		}
		return nil, PoolMetadata{}, fmt.Errorf("git grep failed: %w: %s", err, stderr.String())
	}

	snippets, err := ParseGitGrep(stdout.String())
	if err != nil {
		return nil, PoolMetadata{}, err
	}

	pool, err := NewPool(snippets)
	if err != nil {
		return nil, PoolMetadata{}, err
	}

	meta := PoolMetadata{
		SourceRepo:  opts.RepoDir,
		Commit:      headCommit(ctx, opts.RepoDir),
		Pattern:     opts.Pattern,
		ExtractedAt: time.Now().UTC(),
		Total:       pool.Len(),
	}
	return pool, meta, nil
}

func headCommit(ctx context.Context, repoDir string) string {
	cmd := exec.CommandContext(ctx, "git", "rev-parse", "HEAD")
	cmd.Dir = repoDir
	out, err := cmd.Output()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(out))
}
