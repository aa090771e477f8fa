package validate

import (
	"regexp"
	"strings"

	"ctxbench/internal/config"
)

var (
	whitespaceRunRe = regexp.MustCompile(`[ \t]+`)
	lineNumberRe    = regexp.MustCompile(`^\s*\d+[:.]\s?`)
	lineCommentRe   = regexp.MustCompile(`//.*$`)
)

// Normalize applies the configured normalization steps to text before
// scoring. Both candidate and reference must pass through the same steps
// or the score is meaningless.
func Normalize(text string, cfg config.NormalizeConfig) string {
	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		line = lineNumberRe.ReplaceAllString(line, "")
		if cfg.IgnoreComments {
			line = lineCommentRe.ReplaceAllString(line, "")
		}
		if cfg.CollapseWhitespace {
			line = whitespaceRunRe.ReplaceAllString(line, " ")
		}
		if cfg.StripTrailing {
			line = strings.TrimRight(line, " \t")
		}
		out = append(out, line)
	}
	// Drop leading/trailing blank lines so fencing artifacts don't count
	// as edits.
	start, end := 0, len(out)
	for start < end && strings.TrimSpace(out[start]) == "" {
		start++
	}
	for end > start && strings.TrimSpace(out[end-1]) == "" {
		end--
	}
	return strings.Join(out[start:end], "\n")
}
