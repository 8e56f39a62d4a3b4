// Package query implements the hybrid query engine: one query text is
// encoded into both vector representations, the dense and sparse branches
// search concurrently, and their rankings fuse into a single ranked result
// list by weighted linear combination of min-max-normalized scores.
//
// The engine degrades rather than fails: a branch that times out or errors
// is dropped from fusion with a logged warning, and only the loss of both
// branches fails the query.
package query

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/brainos/retrieval/encode"
	"github.com/brainos/retrieval/model"
	"github.com/brainos/retrieval/store"
)

// ErrEmptyQuery is returned for an empty or whitespace-only query. Input
// errors fail fast and are never retried.
var ErrEmptyQuery = errors.New("query: empty query")

// Result is one fused hit. Score is the weighted combination of normalized
// branch scores, in [0, weightSum].
type Result struct {
	Chunk model.Chunk
	Score float32
}

// Engine answers hybrid queries against one collection.
type Engine struct {
	store      *store.Store
	encoder    *encode.Encoder
	collection string
	opts       options
}

// New creates an Engine over the given store and collection. The encoder
// must be the same one used at ingestion time so query text and chunk text
// share one tokenization.
func New(st *store.Store, enc *encode.Encoder, collection string, optFns ...Option) *Engine {
	return &Engine{
		store:      st,
		encoder:    enc,
		collection: collection,
		opts:       applyOptions(optFns),
	}
}

// Search runs the hybrid query and returns at most k fused results, best
// first. k <= 0 falls back to model.DefaultTopK; k beyond model.MaxTopK is
// rejected. An empty result is a valid answer and distinct from the typed
// errors (ErrEmptyQuery, store.ErrCollectionNotFound).
func (e *Engine) Search(ctx context.Context, text string, k int) ([]Result, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil, ErrEmptyQuery
	}
	switch {
	case k <= 0:
		k = model.DefaultTopK
	case k > model.MaxTopK:
		return nil, fmt.Errorf("query: k %d exceeds maximum %d", k, model.MaxTopK)
	}

	col, err := e.store.Collection(e.collection)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	denseVec, sparseVec, encErr := e.encoder.EncodeQuery(ctx, trimmed)
	if encErr != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		// The sparse representation is local and deterministic, so it can
		// still answer when the embedding capability is down.
		denseVec = nil
		sparseVec = encode.Sparse(trimmed)
		if sparseVec.IsZero() {
			return nil, fmt.Errorf("query: encode query: %w", encErr)
		}
		e.opts.logger.Warn("dense query encoding failed, degrading to sparse-only",
			"error", encErr)
	}

	runDense := len(denseVec) > 0
	runSparse := !sparseVec.IsZero()

	var (
		denseHits, sparseHits []store.SearchResult
		denseErr, sparseErr   error
	)
	var g errgroup.Group
	if runDense {
		g.Go(func() error {
			bctx, cancel := context.WithTimeout(ctx, e.opts.branchTimeout)
			defer cancel()
			denseHits, denseErr = col.SearchDense(bctx, denseVec, k)
			return nil
		})
	}
	if runSparse {
		g.Go(func() error {
			bctx, cancel := context.WithTimeout(ctx, e.opts.branchTimeout)
			defer cancel()
			sparseHits, sparseErr = col.SearchSparse(bctx, sparseVec, k)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	availDense := runDense && denseErr == nil
	availSparse := runSparse && sparseErr == nil
	if !availDense && !availSparse {
		return nil, fmt.Errorf("query: all branches failed: %w", errors.Join(denseErr, sparseErr))
	}
	if runDense && denseErr != nil {
		e.opts.logger.Warn("dense branch failed, sparse-only ranking",
			"error", denseErr)
		denseHits = nil
	}
	if runSparse && sparseErr != nil {
		e.opts.logger.Warn("sparse branch failed, dense-only ranking",
			"error", sparseErr)
		sparseHits = nil
	}

	results := fuse(denseHits, sparseHits, e.opts.denseWeight, e.opts.sparseWeight, k)
	e.opts.logger.Debug("hybrid search completed",
		"collection", e.collection,
		"k", k,
		"dense_hits", len(denseHits),
		"sparse_hits", len(sparseHits),
		"results", len(results),
		"duration", time.Since(start))
	return results, nil
}

type candidate struct {
	chunk model.Chunk
	score float64
}

// fuse merges per-branch rankings into one. Each branch's scores are min-max
// normalized over its own hit list (a single-valued branch normalizes to
// 1.0), weighted, and summed per chunk, so a chunk found by both branches
// appears exactly once with its combined score. Ties resolve toward the
// smaller page number, then the lexically smaller chunk id.
func fuse(dense, sparse []store.SearchResult, denseWeight, sparseWeight float64, k int) []Result {
	byID := make(map[string]*candidate, len(dense)+len(sparse))
	accumulate(byID, dense, denseWeight)
	accumulate(byID, sparse, sparseWeight)

	merged := make([]*candidate, 0, len(byID))
	for _, c := range byID {
		merged = append(merged, c)
	}
	sort.Slice(merged, func(i, j int) bool {
		a, b := merged[i], merged[j]
		if a.score != b.score {
			return a.score > b.score
		}
		if a.chunk.PageNumber != b.chunk.PageNumber {
			return a.chunk.PageNumber < b.chunk.PageNumber
		}
		return a.chunk.ID < b.chunk.ID
	})
	if len(merged) > k {
		merged = merged[:k]
	}

	results := make([]Result, len(merged))
	for i, c := range merged {
		results[i] = Result{Chunk: c.chunk, Score: float32(c.score)}
	}
	return results
}

func accumulate(byID map[string]*candidate, hits []store.SearchResult, weight float64) {
	if len(hits) == 0 || weight == 0 {
		return
	}
	minScore, maxScore := hits[0].Score, hits[0].Score
	for _, h := range hits[1:] {
		if h.Score < minScore {
			minScore = h.Score
		}
		if h.Score > maxScore {
			maxScore = h.Score
		}
	}
	span := float64(maxScore - minScore)

	for _, h := range hits {
		normalized := 1.0
		if span > 0 {
			normalized = float64(h.Score-minScore) / span
		}
		if c, ok := byID[h.Chunk.ID]; ok {
			c.score += weight * normalized
			continue
		}
		byID[h.Chunk.ID] = &candidate{chunk: h.Chunk, score: weight * normalized}
	}
}
