package embedding

import (
	"context"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// Limits bounds outbound embedding calls.
type Limits struct {
	// RequestsPerSecond caps the sustained request rate.
	// If 0, the rate is unlimited.
	RequestsPerSecond float64

	// MaxConcurrent is the maximum number of in-flight requests.
	// If 0, defaults to 1.
	MaxConcurrent int64
}

// RateLimited wraps an Embedder with rate and concurrency limits so a
// large ingest cannot overwhelm the embedding backend.
type RateLimited struct {
	inner Embedder

	// Concurrency
	sem *semaphore.Weighted

	// Rate
	limiter *rate.Limiter // nil if unlimited
}

// NewRateLimited wraps inner with the given limits.
func NewRateLimited(inner Embedder, limits Limits) *RateLimited {
	if limits.MaxConcurrent <= 0 {
		limits.MaxConcurrent = 1
	}

	r := &RateLimited{
		inner: inner,
		sem:   semaphore.NewWeighted(limits.MaxConcurrent),
	}

	if limits.RequestsPerSecond > 0 {
		burst := int(limits.RequestsPerSecond)
		if burst < 1 {
			burst = 1
		}
		r.limiter = rate.NewLimiter(rate.Limit(limits.RequestsPerSecond), burst)
	}

	return r
}

// Embed acquires a slot and a rate token, then delegates to the inner embedder.
func (r *RateLimited) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := r.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer r.sem.Release(1)

	if err := r.wait(ctx, 1); err != nil {
		return nil, err
	}
	return r.inner.Embed(ctx, text)
}

// EmbedBatch acquires a slot and one rate token per input text, then
// delegates to the inner embedder. Charging per text keeps the effective
// rate honest for backends that fan a batch out into individual requests.
func (r *RateLimited) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if err := r.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer r.sem.Release(1)

	if err := r.wait(ctx, len(texts)); err != nil {
		return nil, err
	}
	return r.inner.EmbedBatch(ctx, texts)
}

// Dimensions returns the inner embedder's dimensionality.
func (r *RateLimited) Dimensions() int {
	return r.inner.Dimensions()
}

// ModelName returns the inner embedder's model identifier.
func (r *RateLimited) ModelName() string {
	return r.inner.ModelName()
}

// Ping probes the inner embedder. Health checks are not rate limited.
func (r *RateLimited) Ping(ctx context.Context) error {
	return r.inner.Ping(ctx)
}

// Close releases the inner embedder's resources.
func (r *RateLimited) Close() error {
	return r.inner.Close()
}

// wait blocks until n rate tokens are available. Tokens are drawn one at
// a time so a batch larger than the limiter's burst does not error out.
func (r *RateLimited) wait(ctx context.Context, n int) error {
	if r.limiter == nil {
		return nil
	}
	for i := 0; i < n; i++ {
		if err := r.limiter.Wait(ctx); err != nil {
			return err
		}
	}
	return nil
}

var _ Embedder = (*RateLimited)(nil)
