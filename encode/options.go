package encode

import (
	"log/slog"
	"time"
)

// Defaults for the encoder's pool and retry behavior.
const (
	DefaultConcurrency = 4
	DefaultRetries     = 2
	DefaultBackoff     = 100 * time.Millisecond
	DefaultTimeout     = 30 * time.Second
)

type options struct {
	concurrency int
	retries     int
	backoff     time.Duration
	timeout     time.Duration
	logger      *slog.Logger
}

// Option configures the Encoder.
type Option func(*options)

// WithConcurrency bounds the number of in-flight embedding calls per batch.
// Values below 1 are ignored.
func WithConcurrency(n int) Option {
	return func(o *options) {
		if n >= 1 {
			o.concurrency = n
		}
	}
}

// WithRetries sets how many times a transient embedding failure is retried
// before the chunk is demoted to a reported failure. Negative values are
// ignored; zero disables retries.
func WithRetries(n int) Option {
	return func(o *options) {
		if n >= 0 {
			o.retries = n
		}
	}
}

// WithBackoff sets the base backoff between retries. The actual wait grows
// linearly with the attempt number.
func WithBackoff(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.backoff = d
		}
	}
}

// WithTimeout sets the per-call embedding timeout.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithLogger sets the logger used to report demoted chunks. Pass nil to
// keep the default silent logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		concurrency: DefaultConcurrency,
		retries:     DefaultRetries,
		backoff:     DefaultBackoff,
		timeout:     DefaultTimeout,
		logger:      slog.New(slog.DiscardHandler),
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	return o
}
