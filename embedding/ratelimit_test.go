package embedding

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// gateEmbedder records call counts and the peak number of in-flight calls.
type gateEmbedder struct {
	dims     int
	delay    time.Duration
	calls    atomic.Int64
	inFlight atomic.Int64
	peak     atomic.Int64
}

func (g *gateEmbedder) enter() {
	g.calls.Add(1)
	cur := g.inFlight.Add(1)
	for {
		peak := g.peak.Load()
		if cur <= peak || g.peak.CompareAndSwap(peak, cur) {
			return
		}
	}
}

func (g *gateEmbedder) Embed(_ context.Context, _ string) ([]float32, error) {
	g.enter()
	defer g.inFlight.Add(-1)
	if g.delay > 0 {
		time.Sleep(g.delay)
	}
	return make([]float32, g.dims), nil
}

func (g *gateEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	g.enter()
	defer g.inFlight.Add(-1)
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = make([]float32, g.dims)
	}
	return out, nil
}

func (g *gateEmbedder) Dimensions() int              { return g.dims }
func (g *gateEmbedder) ModelName() string            { return "gate" }
func (g *gateEmbedder) Ping(_ context.Context) error { return nil }
func (g *gateEmbedder) Close() error                 { return nil }

func TestRateLimitedDelegates(t *testing.T) {
	ctx := context.Background()
	inner := NewDeterministic(64)
	limited := NewRateLimited(inner, Limits{MaxConcurrent: 2})

	want, err := inner.Embed(ctx, "hello")
	require.NoError(t, err)

	got, err := limited.Embed(ctx, "hello")
	require.NoError(t, err)
	assert.Equal(t, want, got)

	batch, err := limited.EmbedBatch(ctx, []string{"a", "b"})
	require.NoError(t, err)
	assert.Len(t, batch, 2)

	assert.Equal(t, inner.Dimensions(), limited.Dimensions())
	assert.Equal(t, inner.ModelName(), limited.ModelName())
	assert.NoError(t, limited.Ping(ctx))
	assert.NoError(t, limited.Close())
}

func TestRateLimitedBoundsConcurrency(t *testing.T) {
	ctx := context.Background()
	inner := &gateEmbedder{dims: 8, delay: 20 * time.Millisecond}
	limited := NewRateLimited(inner, Limits{MaxConcurrent: 2})

	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := limited.Embed(ctx, "x")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(6), inner.calls.Load())
	assert.LessOrEqual(t, inner.peak.Load(), int64(2))
}

func TestRateLimitedDeadline(t *testing.T) {
	inner := &gateEmbedder{dims: 8}
	limited := NewRateLimited(inner, Limits{RequestsPerSecond: 1, MaxConcurrent: 1})

	// First call drains the single burst token.
	_, err := limited.Embed(context.Background(), "first")
	require.NoError(t, err)

	// The second call would have to wait a full second for the next token,
	// which exceeds the deadline.
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err = limited.Embed(ctx, "second")
	assert.Error(t, err)
	assert.Equal(t, int64(1), inner.calls.Load(), "inner must not be called after the limiter rejects")
}
