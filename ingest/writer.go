// Package ingest persists encoded chunks into the store and drives the
// whole build-encode-write path as asynchronous jobs.
//
// The writer holds single-writer discipline per collection: batches are
// written sequentially, and a failing batch is bisected down to singletons
// so one poisoned chunk never sinks its siblings. Because upserts are
// idempotent, re-running an interrupted ingestion converges instead of
// duplicating.
package ingest

import (
	"context"
	"errors"
	"time"

	"github.com/brainos/retrieval/model"
	"github.com/brainos/retrieval/store"
)

// Sink is the destination for encoded chunks. *store.Store satisfies it.
type Sink interface {
	EnsureCollection(name string, schema model.Schema) (*store.Collection, error)
	Upsert(ctx context.Context, collection string, chunks []model.Chunk) error
}

var _ Sink = (*store.Store)(nil)

// FailedChunk records one chunk the writer dropped after retries and
// bisection.
type FailedChunk struct {
	ChunkID string
	Source  string
	Err     error
}

// Writer writes encoded chunks into one collection of a Sink.
type Writer struct {
	sink       Sink
	collection string
	schema     model.Schema
	opts       options
}

// NewWriter creates a Writer bound to one collection and schema.
func NewWriter(sink Sink, collection string, schema model.Schema, optFns ...Option) *Writer {
	return &Writer{
		sink:       sink,
		collection: collection,
		schema:     schema,
		opts:       applyOptions(optFns),
	}
}

// Collection returns the name of the target collection.
func (w *Writer) Collection() string { return w.collection }

// EnsureCollection creates the target collection or verifies that an
// existing one carries the writer's schema. First creation wins; later
// callers verify and continue.
func (w *Writer) EnsureCollection() error {
	_, err := w.sink.EnsureCollection(w.collection, w.schema)
	return err
}

// Upsert writes chunks in batches of the configured size. It returns how
// many chunks were committed and which chunks were dropped after retries
// and bisection. A non-nil error aborts the run: chunks committed before
// the abort stay in the store and the remainder is discarded, so an
// idempotent re-run picks up where this one stopped.
func (w *Writer) Upsert(ctx context.Context, chunks []model.Chunk) (int, []FailedChunk, error) {
	var (
		committed int
		failed    []FailedChunk
	)
	for start := 0; start < len(chunks); start += w.opts.batchSize {
		end := min(start+w.opts.batchSize, len(chunks))
		n, fails, err := w.writeBatch(ctx, chunks[start:end])
		committed += n
		failed = append(failed, fails...)
		if err != nil {
			return committed, failed, err
		}
	}
	return committed, failed, nil
}

// writeBatch writes one batch, bisecting on failure until the failing
// chunk is isolated. Abort errors stop the recursion immediately.
func (w *Writer) writeBatch(ctx context.Context, batch []model.Chunk) (int, []FailedChunk, error) {
	if len(batch) == 0 {
		return 0, nil, nil
	}

	err := w.tryWrite(ctx, batch)
	if err == nil {
		return len(batch), nil, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return 0, nil, ctxErr
	}
	if abortError(err) {
		return 0, nil, err
	}

	if len(batch) == 1 {
		c := batch[0]
		w.opts.logger.Warn("chunk permanently failed",
			"collection", w.collection,
			"chunk_id", c.ID,
			"source", c.Source,
			"error", err)
		return 0, []FailedChunk{{ChunkID: c.ID, Source: c.Source, Err: err}}, nil
	}

	w.opts.logger.Debug("bisecting failed batch",
		"collection", w.collection, "size", len(batch), "error", err)

	mid := len(batch) / 2
	leftN, leftFailed, err := w.writeBatch(ctx, batch[:mid])
	if err != nil {
		return leftN, leftFailed, err
	}
	rightN, rightFailed, err := w.writeBatch(ctx, batch[mid:])
	return leftN + rightN, append(leftFailed, rightFailed...), err
}

// tryWrite attempts one store write with bounded retries and linear
// backoff. Deterministic rejections are returned without retrying.
func (w *Writer) tryWrite(ctx context.Context, batch []model.Chunk) error {
	var lastErr error
	for attempt := 0; attempt <= w.opts.retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(attempt) * w.opts.backoff):
			}
		}

		lastErr = w.sink.Upsert(ctx, w.collection, batch)
		if lastErr == nil {
			return nil
		}
		if abortError(lastErr) || permanentError(lastErr) {
			return lastErr
		}
	}
	return lastErr
}

// abortError reports store states that fail the whole write rather than
// any one chunk. Bisection cannot help, so the run stops.
func abortError(err error) bool {
	return errors.Is(err, store.ErrCollectionNotFound) ||
		errors.Is(err, store.ErrReadOnly)
}

// permanentError reports chunk-level rejections that no retry can fix.
// Bisection isolates the offending chunk.
func permanentError(err error) bool {
	return errors.Is(err, store.ErrSchemaMismatch) ||
		errors.Is(err, store.ErrNotEncoded)
}
