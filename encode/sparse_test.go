package encode

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenize(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{
			name: "lowercases and strips punctuation",
			text: "Revenue GREW 14.5% in fiscal 2024!",
			want: []string{"revenue", "grew", "145", "fiscal", "2024"},
		},
		{
			name: "drops short terms",
			text: "a an the ML of AI very big cat",
			want: []string{"the", "very", "big", "cat"},
		},
		{
			name: "empty input",
			text: "   \t \n ",
			want: nil,
		},
		{
			name: "punctuation only",
			text: "?! -- ... ##",
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Tokenize(tt.text))
		})
	}
}

func TestSparseDeterministic(t *testing.T) {
	text := "backpropagation computes gradients through network layers"

	a := Sparse(text)
	b := Sparse(text)
	assert.Equal(t, a, b)
	require.NoError(t, a.Validate())
	assert.Equal(t, 6, a.Len())
}

func TestSparseTermFrequency(t *testing.T) {
	v := Sparse("data data data test")
	require.NoError(t, v.Validate())
	require.Equal(t, 2, v.Len())

	var total float32
	for _, f := range v.Values {
		total += f
	}
	assert.Equal(t, float32(4), total)
	assert.Contains(t, v.Values, float32(3), "repeated term keeps its raw frequency")
	assert.Contains(t, v.Values, float32(1))
}

func TestSparseIndicesAscending(t *testing.T) {
	v := Sparse("zebra apple mango kiwi banana orange papaya lemon")
	require.NoError(t, v.Validate())
	for i := 1; i < len(v.Indices); i++ {
		assert.Less(t, v.Indices[i-1], v.Indices[i])
	}
}

func TestSparseDimensionBound(t *testing.T) {
	v := Sparse("backpropagation gradient descent optimizer regularization")
	for _, dim := range v.Indices {
		assert.LessOrEqual(t, dim, uint32(0x7FFFFFFF))
	}
}

func TestSparseNoIndexableTerms(t *testing.T) {
	assert.True(t, Sparse("a b c d e f").IsZero())
	assert.True(t, Sparse("").IsZero())
}
