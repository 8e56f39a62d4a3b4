// Package synthesis defines the language-model capability used to turn
// retrieved context into a grounded answer.
//
// The retrieval core never calls a model directly. The facade assembles a
// prompt from ranked citations and hands it to a Synthesizer, so the model
// backend can be swapped (Ollama, a static stand-in for tests) without
// touching the pipeline.
package synthesis

import (
	"context"
	"strings"
)

// DeepResearchPrompt is the system instruction used for grounded synthesis.
// Answers must come from the supplied context only, every claim carries a
// citation, and flattened table content is mined for concrete numbers.
const DeepResearchPrompt = "You are a Deep Research Assistant. Answer using ONLY the provided context.\n" +
	"1. Synthesize a non-linear answer based on retrieved evidence.\n" +
	"2. Cite every claim as [Source_Name, Page_X].\n" +
	"3. If context includes flattened tables, extract specific numerical data points."

// userQuestionMarker separates the context blocks from the question inside
// the user prompt built by BuildUserPrompt.
const userQuestionMarker = "USER QUESTION: "

// Synthesizer generates an answer from a system instruction and a user
// prompt that carries the retrieved context.
type Synthesizer interface {
	// Synthesize returns the model's answer for the given prompts.
	Synthesize(ctx context.Context, systemPrompt, userPrompt string) (string, error)

	// Ping reports whether the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases any resources held by the synthesizer.
	Close() error
}

// BuildUserPrompt joins provenance-tagged context blocks and the user's
// question into the prompt body sent alongside DeepResearchPrompt. Blocks
// are separated by blank lines so the model sees one source per paragraph.
func BuildUserPrompt(query string, blocks []string) string {
	var b strings.Builder
	for _, block := range blocks {
		b.WriteString(block)
		b.WriteString("\n\n")
	}
	b.WriteString(userQuestionMarker)
	b.WriteString(query)
	return b.String()
}
