package ingest

import (
	"log/slog"
	"time"
)

// Defaults for write batching and retry behavior.
const (
	DefaultBatchSize = 10
	DefaultRetries   = 2
	DefaultBackoff   = 100 * time.Millisecond
)

type options struct {
	batchSize int
	retries   int
	backoff   time.Duration
	logger    *slog.Logger
}

// Option configures the Writer and the Pipeline built on top of it.
type Option func(*options)

// WithBatchSize sets how many chunks go into one store write. Values below
// 1 are ignored.
func WithBatchSize(n int) Option {
	return func(o *options) {
		if n >= 1 {
			o.batchSize = n
		}
	}
}

// WithRetries sets how many times a failing write is retried before the
// batch is bisected. Negative values are ignored; zero disables retries.
func WithRetries(n int) Option {
	return func(o *options) {
		if n >= 0 {
			o.retries = n
		}
	}
}

// WithBackoff sets the base backoff between write retries. The actual wait
// grows linearly with the attempt number.
func WithBackoff(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.backoff = d
		}
	}
}

// WithLogger sets the logger used to report bisections and permanently
// failed chunks. Pass nil to keep the default silent logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		batchSize: DefaultBatchSize,
		retries:   DefaultRetries,
		backoff:   DefaultBackoff,
		logger:    slog.New(slog.DiscardHandler),
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	return o
}
