package snapshot

import (
	"log/slog"
	"time"

	"github.com/brainos/retrieval/codec"
)

// DefaultPrefix is the bridge key prefix snapshots live under.
const DefaultPrefix = "bridge"

type options struct {
	logger       *slog.Logger
	codec        codec.Codec
	prefix       string
	onTransition OnTransition
	now          func() time.Time
}

// Option configures a Publisher or Subscriber.
type Option func(*options)

// WithLogger sets the logger for cycle progress and failures. Pass nil to
// keep the default silent logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithCodec sets the codec for manifests and pointer records. Both roles
// of a deployment must agree on it.
func WithCodec(c codec.Codec) Option {
	return func(o *options) {
		if c != nil {
			o.codec = c
		}
	}
}

// WithPrefix sets the bridge key prefix. Empty values are ignored.
func WithPrefix(prefix string) Option {
	return func(o *options) {
		if prefix != "" {
			o.prefix = prefix
		}
	}
}

// WithOnTransition installs a state observer.
func WithOnTransition(fn OnTransition) Option {
	return func(o *options) {
		if fn != nil {
			o.onTransition = fn
		}
	}
}

// WithClock overrides the time source used for snapshot names and pointer
// timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		logger:       slog.New(slog.DiscardHandler),
		codec:        codec.Default,
		prefix:       DefaultPrefix,
		onTransition: func(State, State) {},
		now:          time.Now,
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	return o
}
