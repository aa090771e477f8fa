package experiment

import (
	"fmt"
	"strings"

	"ctxbench/internal/snippet"
)

// DefaultInstruction is the transformation task the experiment measures.
const DefaultInstruction = "Rewrite each C code snippet below so that every call to sprintf " +
	"is replaced with an equivalent, bounds-checked call to snprintf. " +
	"Change nothing else: keep formatting, variable names, and surrounding code exactly as given."

const outputContract = "Respond with one section per task, in order, using exactly this format:\n\n" +
	"=== TASK <n> ===\n" +
	"```c\n" +
	"<the transformed snippet>\n" +
	"```\n\n" +
	"Do not add commentary outside the task sections."

// BuildBatchPrompt assembles a single request carrying every snippet in
// the batch as a numbered task. Task numbers are 1-based and the parser
// relies on the section framing declared in the output contract.
func BuildBatchPrompt(snippets []snippet.Snippet, instruction string) string {
	if instruction == "" {
		instruction = DefaultInstruction
	}

	var b strings.Builder
	b.WriteString(instruction)
	b.WriteString("\n\n")
	b.WriteString(outputContract)
	b.WriteString("\n")

	for i, s := range snippets {
		fmt.Fprintf(&b, "\n=== TASK %d ===\n", i+1)
		fmt.Fprintf(&b, "File: %s\n", s.FilePath)
		b.WriteString("```c\n")
		b.WriteString(s.FullContent())
		b.WriteString("\n```\n")
	}
	return b.String()
}

// BuildSinglePrompt is the batch-size-1 variant used for golden answer
// generation.
func BuildSinglePrompt(s snippet.Snippet, instruction string) string {
	return BuildBatchPrompt([]snippet.Snippet{s}, instruction)
}
