package synthesis

import (
	"context"
	"fmt"
	"strings"
)

// Static is a deterministic Synthesizer for tests and offline runs. Instead
// of calling a model it derives a templated answer from the prompt itself,
// counting the context blocks and echoing the question back.
type Static struct{}

// NewStatic creates a static synthesizer.
func NewStatic() *Static {
	return &Static{}
}

// Synthesize returns a canned answer that reflects how many sources were in
// the prompt and which question was asked. The wording matches the offline
// mode users already know, so mock and real deployments stay comparable.
func (*Static) Synthesize(ctx context.Context, _ string, userPrompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	sources := strings.Count(userPrompt, "SOURCE: ")

	question := userPrompt
	if i := strings.LastIndex(userPrompt, userQuestionMarker); i >= 0 {
		question = userPrompt[i+len(userQuestionMarker):]
	}
	question = strings.TrimSpace(question)

	return fmt.Sprintf(
		"Based on %d sources, the answer to '%s' involves the concepts "+
			"mentioned in the retrieved documents. This is a mock response - "+
			"connect to Ollama for real LLM synthesis.",
		sources, question,
	), nil
}

// Ping always succeeds unless the context is already done.
func (*Static) Ping(ctx context.Context) error {
	return ctx.Err()
}

// Close is a no-op.
func (*Static) Close() error {
	return nil
}

var _ Synthesizer = (*Static)(nil)
