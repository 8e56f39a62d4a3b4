// Package encode computes both vector representations of a chunk: a dense
// embedding obtained from the external embedding capability and a locally
// computed deterministic sparse term-frequency vector.
//
// Encoding failures stay chunk-local. A chunk whose embedding call keeps
// failing, or whose embedding comes back with the wrong dimension, is
// demoted to a reported ChunkError while its siblings continue.
package encode

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/brainos/retrieval/embedding"
	"github.com/brainos/retrieval/model"
)

// ErrDimensionMismatch reports an embedding whose length differs from the
// collection schema. Mismatches are deterministic model properties and are
// never retried.
var ErrDimensionMismatch = errors.New("encode: embedding dimension mismatch")

// ChunkError records one chunk that could not be encoded.
type ChunkError struct {
	ChunkID string
	Err     error
}

func (e *ChunkError) Error() string {
	return fmt.Sprintf("encode: chunk %s: %v", e.ChunkID, e.Err)
}

func (e *ChunkError) Unwrap() error { return e.Err }

// Encoder attaches dense and sparse vectors to chunks. Batches run on a
// bounded worker pool; embedding calls carry per-call timeouts and bounded
// retries with linear backoff.
type Encoder struct {
	embedder  embedding.Embedder
	dimension int
	opts      options
}

// New creates an Encoder that enforces the given dense dimension on every
// embedding the capability returns.
func New(embedder embedding.Embedder, dimension int, optFns ...Option) *Encoder {
	return &Encoder{
		embedder:  embedder,
		dimension: dimension,
		opts:      applyOptions(optFns),
	}
}

// Encode vectorizes a batch of chunks. It returns the successfully encoded
// chunks in input order, one ChunkError per failed chunk, and a non-nil
// error only when the whole batch aborts (context cancellation). Input
// chunks are not mutated.
func (e *Encoder) Encode(ctx context.Context, chunks []model.Chunk) ([]model.Chunk, []ChunkError, error) {
	if len(chunks) == 0 {
		return nil, nil, nil
	}

	encoded := make([]model.Chunk, len(chunks))
	failed := make([]error, len(chunks))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.concurrency)

	for i := range chunks {
		g.Go(func() error {
			c := chunks[i]

			sparse := Sparse(c.Text)
			if sparse.IsZero() {
				failed[i] = errors.New("no indexable terms")
				return nil
			}

			dense, err := e.embedWithRetry(gctx, c.Text)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				failed[i] = err
				e.opts.logger.Warn("chunk encoding failed",
					"chunk_id", c.ID, "source", c.Source, "error", err)
				return nil
			}

			c.Dense = dense
			c.Sparse = sparse
			encoded[i] = c
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	out := make([]model.Chunk, 0, len(chunks))
	var chunkErrs []ChunkError
	for i := range chunks {
		if failed[i] != nil {
			chunkErrs = append(chunkErrs, ChunkError{ChunkID: chunks[i].ID, Err: failed[i]})
			continue
		}
		out = append(out, encoded[i])
	}
	return out, chunkErrs, nil
}

// EncodeQuery produces both vector representations for one query text,
// through the same embedding capability and the same sparse rules as chunk
// encoding. The sparse vector may be zero when the query holds no indexable
// terms; the caller decides what that means.
func (e *Encoder) EncodeQuery(ctx context.Context, text string) ([]float32, model.SparseVector, error) {
	dense, err := e.embedWithRetry(ctx, text)
	if err != nil {
		return nil, model.SparseVector{}, err
	}
	return dense, Sparse(text), nil
}

// Dimension returns the enforced dense dimension.
func (e *Encoder) Dimension() int {
	return e.dimension
}

// embedWithRetry calls the embedding capability with a per-call timeout and
// bounded retries. Transient errors back off linearly; a dimension mismatch
// fails immediately.
func (e *Encoder) embedWithRetry(ctx context.Context, text string) ([]float32, error) {
	var lastErr error
	for attempt := 0; attempt <= e.opts.retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(attempt) * e.opts.backoff):
			}
		}

		callCtx, cancel := context.WithTimeout(ctx, e.opts.timeout)
		vec, err := e.embedder.Embed(callCtx, text)
		cancel()

		if err != nil {
			lastErr = err
			continue
		}
		if len(vec) != e.dimension {
			return nil, fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(vec), e.dimension)
		}
		return vec, nil
	}
	return nil, lastErr
}
