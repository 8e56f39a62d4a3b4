package chunk

import "log/slog"

// Defaults for the builder's size rules.
const (
	// DefaultMinChars is the minimum non-whitespace length an element needs
	// to become a chunk.
	DefaultMinChars = 12

	// DefaultMaxChars caps the length of a merged text chunk.
	DefaultMaxChars = 2000
)

type options struct {
	minChars int
	maxChars int
	logger   *slog.Logger
}

// Option configures the Builder.
type Option func(*options)

// WithMinChars sets the minimum non-whitespace element length. Values below
// 1 are ignored.
func WithMinChars(n int) Option {
	return func(o *options) {
		if n >= 1 {
			o.minChars = n
		}
	}
}

// WithMaxChars sets the maximum merged chunk length. Values below 1 are
// ignored.
func WithMaxChars(n int) Option {
	return func(o *options) {
		if n >= 1 {
			o.maxChars = n
		}
	}
}

// WithLogger sets the logger used to report skipped elements. Pass nil to
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
		minChars: DefaultMinChars,
		maxChars: DefaultMaxChars,
		logger:   slog.New(slog.DiscardHandler),
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	return o
}
