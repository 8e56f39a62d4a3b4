package encode

import (
	"hash/fnv"
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/brainos/retrieval/model"
)

// sparseDimensionMask bounds sparse dimensions to the 2^31 space. Distinct
// terms can collide inside that space; collisions merge their frequencies
// into one dimension, a documented and accepted trade-off.
const sparseDimensionMask = 0x7FFFFFFF

// Tokenize splits text into the terms used for sparse encoding: lowercase,
// whitespace-separated, stripped of non-alphanumeric runes, with terms of
// two runes or fewer dropped. Chunk encoding and query encoding share this
// single implementation so both sides of a lexical match agree on terms.
func Tokenize(text string) []string {
	var tokens []string
	for _, word := range strings.Fields(strings.ToLower(text)) {
		var b strings.Builder
		for _, r := range word {
			if unicode.IsLetter(r) || unicode.IsDigit(r) {
				b.WriteRune(r)
			}
		}
		if cleaned := b.String(); utf8.RuneCountInString(cleaned) > 2 {
			tokens = append(tokens, cleaned)
		}
	}
	return tokens
}

// Sparse computes the deterministic term-frequency vector of text. Each
// distinct term maps to dimension fnv1a32(term) & 0x7FFFFFFF with its raw
// frequency as the value; indices come out sorted ascending. Identical text
// always yields an identical vector, independent of batch composition or
// concurrency. The store applies the IDF modifier at query time, never the
// encoder.
func Sparse(text string) model.SparseVector {
	freq := make(map[uint32]float32)
	for _, token := range Tokenize(text) {
		h := fnv.New32a()
		_, _ = h.Write([]byte(token))
		freq[h.Sum32()&sparseDimensionMask]++
	}
	if len(freq) == 0 {
		return model.SparseVector{}
	}

	indices := make([]uint32, 0, len(freq))
	for dim := range freq {
		indices = append(indices, dim)
	}
	slices.Sort(indices)

	values := make([]float32, len(indices))
	for i, dim := range indices {
		values[i] = freq[dim]
	}
	return model.SparseVector{Indices: indices, Values: values}
}
