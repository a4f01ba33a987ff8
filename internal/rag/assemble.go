package rag

import (
	"fmt"
	"strings"

	"github.com/docchat/docchat/internal/convo"
	"github.com/docchat/docchat/internal/index"
)

// assemblePrompt builds the generation prompt from retrieved chunks and
// recent conversation history. It returns the prompt and the results
// whose chunks actually appear in it; citations must be built from that
// slice so an answer never cites text the model was not shown.
//
// The excerpt and history sections together must fit within budget
// characters. When they do not, history exchanges are dropped oldest
// first; if the excerpts alone still exceed the budget, whole chunks are
// omitted from the low-similarity end. Chunks are never truncated
// mid-text, so every excerpt in the prompt is a complete chunk.
func assemblePrompt(filename, question string, results []index.Result, history []convo.Exchange, budget int) (string, []index.Result) {
	included := results
	excerpts := make([]string, len(results))
	for i, r := range results {
		excerpts[i] = fmt.Sprintf("[Page %d] %s", r.PageNum, r.Text)
	}

	historyLines := make([]string, len(history))
	for i, ex := range history {
		historyLines[i] = fmt.Sprintf("Q: %s\nA: %s", ex.Question, ex.Answer)
	}

	// Drop history oldest first until the sections fit.
	for len(historyLines) > 0 && sectionSize(excerpts)+sectionSize(historyLines) > budget {
		historyLines = historyLines[1:]
	}

	// Then omit whole chunks, least similar first. Results arrive most
	// similar first, so trim from the tail.
	for len(excerpts) > 1 && sectionSize(excerpts) > budget {
		excerpts = excerpts[:len(excerpts)-1]
		included = included[:len(included)-1]
	}

	var b strings.Builder
	fmt.Fprintf(&b, "You are answering questions about the document %q.\n", filename)
	b.WriteString("Use only the excerpts below. Cite page numbers in your answer.\n")
	b.WriteString("If the excerpts do not contain the answer, say you cannot find it in the document.\n\n")

	if len(excerpts) == 0 {
		b.WriteString("No relevant excerpts were found in the document.\n\n")
	} else {
		b.WriteString("Document excerpts:\n")
		for _, e := range excerpts {
			b.WriteString(e)
			b.WriteString("\n\n")
		}
	}

	if len(historyLines) > 0 {
		b.WriteString("Previous conversation:\n")
		for _, line := range historyLines {
			b.WriteString(line)
			b.WriteString("\n\n")
		}
	}

	fmt.Fprintf(&b, "Question: %s\n", question)
	return b.String(), included
}

// sectionSize counts the characters a set of lines contributes to the
// prompt, including separators.
func sectionSize(lines []string) int {
	size := 0
	for _, line := range lines {
		size += len(line) + 2
	}
	return size
}
