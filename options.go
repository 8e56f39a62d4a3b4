package retrieval

import (
	"log/slog"

	"github.com/brainos/retrieval/blobstore"
	"github.com/brainos/retrieval/embedding"
	"github.com/brainos/retrieval/layout"
	"github.com/brainos/retrieval/synthesis"
)

type options struct {
	logger      *Logger
	metrics     MetricsCollector
	embedder    embedding.Embedder
	synthesizer synthesis.Synthesizer
	parser      layout.Parser
	bridge      blobstore.BlobStore
	pointers    blobstore.PointerStore
}

// Option configures a Service or Replica.
type Option func(*options)

// WithLogger sets the logger for all components. Pass nil to keep the
// default silent logger.
func WithLogger(l *Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithLogLevel installs a text logger at the given level. Convenience
// wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

// WithMetrics sets the metrics collector. Pass nil to keep NoopMetrics.
func WithMetrics(mc MetricsCollector) Option {
	return func(o *options) {
		if mc != nil {
			o.metrics = mc
		}
	}
}

// WithEmbedder overrides the embedding capability the config would select.
// The embedder's dimensions must match the configured collection schema.
func WithEmbedder(e embedding.Embedder) Option {
	return func(o *options) {
		o.embedder = e
	}
}

// WithSynthesizer overrides the synthesis capability the config would
// select.
func WithSynthesizer(s synthesis.Synthesizer) Option {
	return func(o *options) {
		o.synthesizer = s
	}
}

// WithParser sets the layout engine used by IngestFile and IngestDirectory.
// The default is the deterministic plain-text parser.
func WithParser(p layout.Parser) Option {
	return func(o *options) {
		o.parser = p
	}
}

// WithBridge attaches a bridge store for snapshot replication. A Service
// built with a bridge can Publish; OpenReplica requires one to Sync. Use
// OpenBridge to construct both ends from config.
func WithBridge(blobs blobstore.BlobStore, pointers blobstore.PointerStore) Option {
	return func(o *options) {
		o.bridge = blobs
		o.pointers = pointers
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		logger:  NoopLogger(),
		metrics: NoopMetrics{},
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	return o
}
