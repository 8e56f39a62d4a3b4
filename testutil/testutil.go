package testutil

import (
	"math"
	"math/rand"
	"strings"
	"sync"

	"github.com/brainos/retrieval/chunk"
	"github.com/brainos/retrieval/encode"
	"github.com/brainos/retrieval/model"
)

// RNG is a seeded random source, safe for concurrent use. The same seed
// reproduces the same fixtures across runs.
type RNG struct {
	mu   sync.Mutex
	rand *rand.Rand
	seed int64
}

// NewRNG creates an RNG with the given seed.
func NewRNG(seed int64) *RNG {
	return &RNG{
		rand: rand.New(rand.NewSource(seed)),
		seed: seed,
	}
}

// Reset rewinds the RNG to its initial seed.
func (r *RNG) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rand.Seed(r.seed)
}

// Seed returns the initial seed.
func (r *RNG) Seed() int64 { return r.seed }

// Intn returns a pseudo-random number in [0, n).
func (r *RNG) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Intn(n)
}

// Float32 returns a pseudo-random number in [0.0, 1.0).
func (r *RNG) Float32() float32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Float32()
}

// FillUniform fills dst with values in [0, 1).
func (r *RNG) FillUniform(dst []float32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range dst {
		dst[i] = r.rand.Float32()
	}
}

// UnitVector returns one L2-normalized vector of the given dimension, the
// shape real embedding models emit.
func (r *RNG) UnitVector(dim int) []float32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.unitVector(dim)
}

// UnitVectors returns n L2-normalized vectors backed by one allocation.
func (r *RNG) UnitVectors(n, dim int) [][]float32 {
	r.mu.Lock()
	defer r.mu.Unlock()

	data := make([]float32, n*dim)
	vectors := make([][]float32, n)
	for i := range vectors {
		vec := data[i*dim : (i+1)*dim]
		r.fillUnit(vec)
		vectors[i] = vec
	}
	return vectors
}

func (r *RNG) unitVector(dim int) []float32 {
	vec := make([]float32, dim)
	r.fillUnit(vec)
	return vec
}

func (r *RNG) fillUnit(vec []float32) {
	var norm float64
	for i := range vec {
		v := r.rand.NormFloat64()
		vec[i] = float32(v)
		norm += v * v
	}
	if norm == 0 {
		norm = 1
	}
	inv := float32(1 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= inv
	}
}

// corpusWords is the vocabulary behind the synthetic corpus. Research and
// finance flavored, so sparse tokenization sees realistic term overlap.
var corpusWords = []string{
	"revenue", "growth", "quarter", "margin", "subscription", "churn",
	"pipeline", "forecast", "segment", "cohort", "retention", "expansion",
	"headcount", "expenses", "guidance", "capital", "liquidity", "audit",
	"research", "analysis", "dataset", "evidence", "baseline", "variance",
	"methodology", "appendix", "summary", "outlook", "benchmark", "index",
	"portfolio", "allocation", "deferred", "amortized", "consolidated",
	"operating", "recurring", "annualized", "incremental", "material",
	"disclosed", "estimated", "projected", "reported", "adjusted", "declined",
	"increased", "accelerated", "stabilized", "contracted",
}

// Sentence returns a capitalized sentence of the given word count.
func (r *RNG) Sentence(words int) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sentence(words)
}

// Paragraph returns two to four sentences, long enough to pass the chunk
// builder's minimum length.
func (r *RNG) Paragraph() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.paragraph()
}

func (r *RNG) sentence(words int) string {
	if words < 1 {
		words = 1
	}
	parts := make([]string, words)
	for i := range parts {
		parts[i] = corpusWords[r.rand.Intn(len(corpusWords))]
	}
	s := strings.Join(parts, " ") + "."
	return strings.ToUpper(s[:1]) + s[1:]
}

func (r *RNG) paragraph() string {
	sentences := make([]string, 2+r.rand.Intn(3))
	for i := range sentences {
		sentences[i] = r.sentence(6 + r.rand.Intn(7))
	}
	return strings.Join(sentences, " ")
}

// Elements generates a parsed document: a title, then perPage narrative
// blocks on each of pages pages, with a table block closing every third
// page. The output is valid chunk-builder input.
func (r *RNG) Elements(pages, perPage int) []model.Element {
	r.mu.Lock()
	defer r.mu.Unlock()

	elements := make([]model.Element, 0, pages*perPage+1)
	elements = append(elements, model.Element{
		Text:       r.sentence(4),
		PageNumber: 1,
		Kind:       "Title",
	})
	for page := 1; page <= pages; page++ {
		for i := 0; i < perPage; i++ {
			kind := "NarrativeText"
			if i == perPage-1 && page%3 == 0 {
				kind = "Table"
			}
			elements = append(elements, model.Element{
				Text:       r.paragraph(),
				PageNumber: page,
				Kind:       kind,
			})
		}
	}
	return elements
}

// Chunks generates n fully encoded chunks for one source document: unit
// dense vectors of the given dimension and sparse vectors derived from the
// generated text. Ready to upsert.
func (r *RNG) Chunks(source string, n, dim int) []model.Chunk {
	r.mu.Lock()
	defer r.mu.Unlock()

	chunks := make([]model.Chunk, n)
	for i := range chunks {
		page := i/4 + 1
		text := r.paragraph()
		chunks[i] = model.Chunk{
			ID:          chunk.ChunkID(source, page, i, text),
			Text:        text,
			Source:      source,
			PageNumber:  page,
			ElementType: model.ElementText,
			Dense:       r.unitVector(dim),
			Sparse:      encode.Sparse(text),
		}
	}
	return chunks
}
