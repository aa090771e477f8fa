package experiment

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
)

// ErrParse indicates a model reply carried no recognizable task sections.
var ErrParse = errors.New("unparsable model response")

// Models take liberties with the section framing; accept `=== TASK 1 ===`,
// `## Task 1`, `TASK 1:` and similar single-line variants.
var taskHeaderRe = regexp.MustCompile(`(?mi)^\s*(?:=+|#+|\*+)?\s*TASK\s+(\d+)\s*(?:=+|#+|\*+|:)?\s*$`)

var codeFenceRe = regexp.MustCompile("(?s)```[a-zA-Z]*\n?(.*?)```")

// ParseBatchResponse decomposes a reply into n per-task candidates,
// indexed by task number. Tasks the model skipped come back as empty
// strings; the validator turns those into failed results. ErrParse only
// when no task section can be found at all (for n==1 the whole reply is
// accepted as the single candidate).
func ParseBatchResponse(reply string, n int) ([]string, error) {
	candidates := make([]string, n)

	matches := taskHeaderRe.FindAllStringSubmatchIndex(reply, -1)
	if len(matches) == 0 {
		if n == 1 {
			if code := StripCodeFence(reply); strings.TrimSpace(code) != "" {
				candidates[0] = code
				return candidates, nil
			}
		}
		return nil, ErrParse
	}

	for i, m := range matches {
		taskNum, err := strconv.Atoi(reply[m[2]:m[3]])
		if err != nil || taskNum < 1 || taskNum > n {
			continue
		}
		start := m[1]
		end := len(reply)
		if i+1 < len(matches) {
			end = matches[i+1][0]
		}
		candidates[taskNum-1] = StripCodeFence(reply[start:end])
	}
	return candidates, nil
}

// StripCodeFence extracts the contents of the first fenced code block,
// or returns the trimmed text unchanged when there is no fence.
func StripCodeFence(text string) string {
	if m := codeFenceRe.FindStringSubmatch(text); m != nil {
		return strings.TrimRight(m[1], "\n")
	}
	return strings.TrimSpace(text)
}
