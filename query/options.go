package query

import (
	"log/slog"
	"time"
)

// Fusion defaults. Dense carries most of the signal for natural-language
// questions; the sparse branch keeps exact terms, codes and numbers from
// being washed out.
const (
	DefaultDenseWeight  = 0.7
	DefaultSparseWeight = 0.3

	// DefaultBranchTimeout bounds each retrieval branch independently.
	DefaultBranchTimeout = 10 * time.Second
)

// Option configures an Engine.
type Option func(*options)

type options struct {
	denseWeight   float64
	sparseWeight  float64
	branchTimeout time.Duration
	logger        *slog.Logger
}

// WithFusionWeights sets the linear fusion weights applied to the
// min-max-normalized dense and sparse branch scores. Negative weights and
// all-zero pairs are ignored.
func WithFusionWeights(dense, sparse float64) Option {
	return func(o *options) {
		if dense < 0 || sparse < 0 || dense+sparse == 0 {
			return
		}
		o.denseWeight = dense
		o.sparseWeight = sparse
	}
}

// WithBranchTimeout bounds each retrieval branch. A branch that exceeds the
// timeout fails alone; the other branch still answers.
func WithBranchTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.branchTimeout = d
		}
	}
}

// WithLogger sets the logger for degraded rankings and search timings. Pass
// nil to keep the default silent logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

func applyOptions(optFns []Option) options {
	opts := options{
		denseWeight:   DefaultDenseWeight,
		sparseWeight:  DefaultSparseWeight,
		branchTimeout: DefaultBranchTimeout,
		logger:        slog.New(slog.DiscardHandler),
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return opts
}
