// Package embedding defines the dense-embedding capability consumed by the
// encoder and the query engine, together with a deterministic in-process
// implementation for tests and offline runs.
//
// Production adapters live in the ollama and openai sub-packages. All
// implementations must be safe for concurrent use.
package embedding

import (
	"context"
	"errors"
)

// ErrEmptyInput is returned when an empty text is submitted for embedding.
var ErrEmptyInput = errors.New("embedding: empty input")

// Embedder turns text into fixed-dimension dense vectors. The same text must
// embed to the same vector within one model version; the encoder relies on
// that for idempotent re-ingestion.
type Embedder interface {
	// Embed returns the vector for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)
	// EmbedBatch returns vectors for texts, in input order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	// Dimensions returns the vector size this embedder produces.
	Dimensions() int
	// ModelName identifies the backing model.
	ModelName() string
	// Ping verifies the backing service is reachable.
	Ping(ctx context.Context) error
	// Close releases resources.
	Close() error
}
