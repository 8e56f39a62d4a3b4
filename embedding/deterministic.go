package embedding

import (
	"context"
	"hash/fnv"
	"math"
)

// DefaultDeterministicDimensions matches the collection default so the
// deterministic embedder drops in without config changes.
const DefaultDeterministicDimensions = 384

// Deterministic is an offline Embedder that derives unit vectors from a hash
// of the text. It has no semantic quality; its value is that identical text
// always yields identical vectors and different texts almost always differ,
// which is what encoder and replication tests need.
type Deterministic struct {
	dimensions int
}

// NewDeterministic creates a deterministic embedder. dimensions defaults to
// DefaultDeterministicDimensions if <= 0.
func NewDeterministic(dimensions int) *Deterministic {
	if dimensions <= 0 {
		dimensions = DefaultDeterministicDimensions
	}
	return &Deterministic{dimensions: dimensions}
}

// Embed returns the hash-derived unit vector for text.
func (d *Deterministic) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if text == "" {
		return nil, ErrEmptyInput
	}

	h := fnv.New64a()
	_, _ = h.Write([]byte(text))
	state := h.Sum64()

	vec := make([]float32, d.dimensions)
	var norm float64
	for i := range vec {
		state = splitmix64(state)
		// Map to [-1, 1].
		v := float64(int64(state)) / math.MaxInt64
		vec[i] = float32(v)
		norm += v * v
	}

	norm = math.Sqrt(norm)
	if norm == 0 {
		vec[0] = 1
		return vec, nil
	}
	inv := float32(1 / norm)
	for i := range vec {
		vec[i] *= inv
	}
	return vec, nil
}

// EmbedBatch embeds each text independently; order is preserved.
func (d *Deterministic) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := d.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

// Dimensions returns the configured vector size.
func (d *Deterministic) Dimensions() int {
	return d.dimensions
}

// ModelName identifies the deterministic embedder.
func (d *Deterministic) ModelName() string {
	return "deterministic"
}

// Ping always succeeds; there is no backing service.
func (d *Deterministic) Ping(ctx context.Context) error {
	return ctx.Err()
}

// Close is a no-op.
func (d *Deterministic) Close() error {
	return nil
}

// splitmix64 advances the hash state; each step is a well-mixed 64-bit value.
func splitmix64(x uint64) uint64 {
	x += 0x9e3779b97f4a7c15
	z := x
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}

var _ Embedder = (*Deterministic)(nil)
