package store

import (
	"log/slog"

	"github.com/brainos/retrieval/codec"
)

// Option configures a Store.
type Option func(*options)

type options struct {
	logger      *slog.Logger
	codec       codec.Codec
	compression Compression
}

// WithLogger sets the logger for collection lifecycle, upsert, snapshot and
// reload events. Pass nil to keep the default silent logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithCodec sets the codec used for archive rows and headers. Readers select
// the codec recorded in the archive, so this only affects new snapshots.
func WithCodec(c codec.Codec) Option {
	return func(o *options) {
		if c != nil {
			o.codec = c
		}
	}
}

// WithCompression sets the archive compression for new snapshots.
func WithCompression(c Compression) Option {
	return func(o *options) {
		o.compression = c
	}
}

func applyOptions(optFns []Option) options {
	opts := options{
		logger:      slog.New(slog.DiscardHandler),
		codec:       codec.Default,
		compression: CompressionZstd,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return opts
}
