package store

import (
	"context"
	"fmt"
	"math"
	"slices"
	"sync"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/brainos/retrieval/distance"
	"github.com/brainos/retrieval/internal/queue"
	"github.com/brainos/retrieval/model"
)

// denseScanStride is how many rows a dense scan visits between context
// checks.
const denseScanStride = 4096

// SearchResult is one scored hit. Chunk is a deep copy; callers may keep or
// mutate it freely.
type SearchResult struct {
	Chunk model.Chunk
	Score float32
}

// Collection holds the indexed chunks of one named collection: row storage
// for dense scans, an inverted roaring index for sparse scoring, and the
// fixed schema both must agree with.
//
// Reads take the read lock, so queries run concurrently with each other and
// with snapshot creation. Mutations go through the owning Store.
type Collection struct {
	name      string
	schema    model.Schema
	scorer    distance.Func
	lower     bool // raw metric value: lower is closer
	normalize bool

	mu       sync.RWMutex
	rows     []model.Chunk
	byID     map[string]uint32
	postings map[uint32]*roaring.Bitmap // sparse dimension -> rows containing it
}

func newCollection(name string, schema model.Schema) (*Collection, error) {
	scorer, err := distance.Provider(schema.Distance)
	if err != nil {
		return nil, err
	}
	return &Collection{
		name:      name,
		schema:    schema,
		scorer:    scorer,
		lower:     schema.Distance.LowerIsBetter(),
		normalize: schema.Distance == distance.MetricCosine,
		byID:      make(map[string]uint32),
		postings:  make(map[uint32]*roaring.Bitmap),
	}, nil
}

// Name returns the collection name.
func (c *Collection) Name() string { return c.name }

// Schema returns the fixed schema established at creation.
func (c *Collection) Schema() model.Schema { return c.schema }

// Count returns the number of indexed chunks.
func (c *Collection) Count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.rows)
}

// Terms returns the number of distinct sparse dimensions in the inverted
// index.
func (c *Collection) Terms() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.postings)
}

// Get returns a copy of the chunk with the given id.
func (c *Collection) Get(id string) (model.Chunk, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	row, ok := c.byID[id]
	if !ok {
		return model.Chunk{}, false
	}
	return c.rows[row].Clone(), true
}

// upsert applies prepared (validated, normalized) chunks. A chunk whose id
// is already present and whose content is unchanged is a no-op; a changed
// chunk replaces text and both vectors in one step under the write lock.
func (c *Collection) upsert(chunks []model.Chunk) (added, updated, unchanged int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i := range chunks {
		chunk := chunks[i]
		row, ok := c.byID[chunk.ID]
		if !ok {
			row = uint32(len(c.rows))
			c.rows = append(c.rows, chunk)
			c.byID[chunk.ID] = row
			c.index(row, chunk.Sparse)
			added++
			continue
		}
		if sameChunk(&c.rows[row], &chunk) {
			unchanged++
			continue
		}
		c.unindex(row, c.rows[row].Sparse)
		c.rows[row] = chunk
		c.index(row, chunk.Sparse)
		updated++
	}
	return added, updated, unchanged
}

func (c *Collection) index(row uint32, sparse model.SparseVector) {
	for _, dim := range sparse.Indices {
		bm := c.postings[dim]
		if bm == nil {
			bm = roaring.New()
			c.postings[dim] = bm
		}
		bm.Add(row)
	}
}

func (c *Collection) unindex(row uint32, sparse model.SparseVector) {
	for _, dim := range sparse.Indices {
		bm := c.postings[dim]
		if bm == nil {
			continue
		}
		bm.Remove(row)
		if bm.IsEmpty() {
			delete(c.postings, dim)
		}
	}
}

func sameChunk(a, b *model.Chunk) bool {
	return a.Text == b.Text &&
		a.Source == b.Source &&
		a.PageNumber == b.PageNumber &&
		a.ElementType == b.ElementType &&
		slices.Equal(a.Dense, b.Dense) &&
		slices.Equal(a.Sparse.Indices, b.Sparse.Indices) &&
		slices.Equal(a.Sparse.Values, b.Sparse.Values)
}

// SearchDense scans all rows against the query vector and returns the k
// best matches, best first. Ties resolve toward the earlier row so results
// are stable across runs.
func (c *Collection) SearchDense(ctx context.Context, vector []float32, k int) ([]SearchResult, error) {
	if k < 1 {
		return nil, fmt.Errorf("store: dense search k %d is not positive", k)
	}
	if len(vector) != c.schema.DenseDimension {
		return nil, fmt.Errorf("%w: query dimension %d, collection %s expects %d",
			ErrSchemaMismatch, len(vector), c.name, c.schema.DenseDimension)
	}

	q := vector
	if c.normalize {
		normalized, ok := distance.NormalizeL2Copy(vector)
		if !ok {
			return nil, fmt.Errorf("store: query vector has zero norm")
		}
		q = normalized
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	top := queue.NewTopK(k)
	for row := range c.rows {
		if row%denseScanStride == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		score := c.scorer(q, c.rows[row].Dense)
		if c.lower {
			score = -score
		}
		top.Push(uint32(row), score)
	}
	return c.collect(top), nil
}

// SearchSparse scores rows that share at least one term with the query
// vector and returns the k best, best first. With the IDF modifier the
// score is sum over shared terms of queryTF * idf(term) * rowTF, where
// idf(t) = ln(1 + (N - df(t) + 0.5) / (df(t) + 0.5)) over the collection's
// N rows. A query with no indexable terms matches nothing.
func (c *Collection) SearchSparse(ctx context.Context, query model.SparseVector, k int) ([]SearchResult, error) {
	if k < 1 {
		return nil, fmt.Errorf("store: sparse search k %d is not positive", k)
	}
	if err := query.Validate(); err != nil {
		return nil, err
	}
	if query.IsZero() {
		return nil, nil
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	total := len(c.rows)
	scores := make(map[uint32]float64)
	for qi, dim := range query.Indices {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		bm := c.postings[dim]
		if bm == nil {
			continue
		}
		weight := float64(query.Values[qi])
		if c.schema.Modifier == model.ModifierIDF {
			weight *= idfWeight(total, bm.GetCardinality())
		}
		it := bm.Iterator()
		for it.HasNext() {
			row := it.Next()
			scores[row] += weight * float64(rowTermFrequency(&c.rows[row], dim))
		}
	}

	top := queue.NewTopK(k)
	for row, score := range scores {
		top.Push(row, float32(score))
	}
	return c.collect(top), nil
}

// idfWeight follows the BM25 inverse-document-frequency shape. df is at
// least 1 whenever a posting list exists, and at most total, so the
// argument to Log stays above 1 and weights stay positive.
func idfWeight(total int, df uint64) float64 {
	return math.Log(1 + (float64(total)-float64(df)+0.5)/(float64(df)+0.5))
}

func rowTermFrequency(chunk *model.Chunk, dim uint32) float32 {
	i, ok := slices.BinarySearch(chunk.Sparse.Indices, dim)
	if !ok {
		return 0
	}
	return chunk.Sparse.Values[i]
}

// collect drains the top-k queue into results, cloning each chunk so the
// caller never aliases store memory. Must be called with at least a read
// lock held.
func (c *Collection) collect(top *queue.TopK) []SearchResult {
	items := top.Sorted()
	if len(items) == 0 {
		return nil
	}
	out := make([]SearchResult, len(items))
	for i, item := range items {
		out[i] = SearchResult{
			Chunk: c.rows[item.Row].Clone(),
			Score: item.Score,
		}
	}
	return out
}
