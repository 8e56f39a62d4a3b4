package retrieval

import (
	"context"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with retrieval-specific helpers so every
// operation logs with consistent field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a Logger with the given handler. A nil handler falls
// back to a text handler on stderr at Info level.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{Logger: slog.New(handler)}
}

// NewJSONLogger creates a Logger that writes JSON lines to stderr.
// level sets the minimum log level.
func NewJSONLogger(level slog.Level) *Logger {
	return &Logger{Logger: slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))}
}

// NewTextLogger creates a Logger that writes human-readable text to stderr.
func NewTextLogger(level slog.Level) *Logger {
	return &Logger{Logger: slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))}
}

// NoopLogger creates a Logger that discards all output.
func NoopLogger() *Logger {
	return &Logger{Logger: slog.New(slog.DiscardHandler)}
}

// WithCollection tags the logger with a collection name.
func (l *Logger) WithCollection(name string) *Logger {
	return &Logger{Logger: l.Logger.With("collection", name)}
}

// WithSource tags the logger with a document source.
func (l *Logger) WithSource(source string) *Logger {
	return &Logger{Logger: l.Logger.With("source", source)}
}

// LogIngest logs one document run through the ingestion pipeline. indexed
// and failed count chunks.
func (l *Logger) LogIngest(ctx context.Context, source string, indexed, failed int, err error) {
	switch {
	case err != nil:
		l.ErrorContext(ctx, "ingest failed",
			"source", source,
			"error", err,
		)
	case failed > 0:
		l.WarnContext(ctx, "ingest completed with failures",
			"source", source,
			"indexed", indexed,
			"failed", failed,
		)
	default:
		l.InfoContext(ctx, "ingest completed",
			"source", source,
			"indexed", indexed,
		)
	}
}

// LogUpsert logs a committed chunk batch.
func (l *Logger) LogUpsert(ctx context.Context, collection string, count int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "upsert failed",
			"collection", collection,
			"count", count,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "upsert completed",
			"collection", collection,
			"count", count,
		)
	}
}

// LogSearch logs a hybrid query.
func (l *Logger) LogSearch(ctx context.Context, k, results int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "search failed",
			"k", k,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "search completed",
			"k", k,
			"results", results,
		)
	}
}

// LogSnapshot logs a snapshot publish.
func (l *Logger) LogSnapshot(ctx context.Context, name string, bytes int64, err error) {
	if err != nil {
		l.ErrorContext(ctx, "snapshot publish failed",
			"snapshot", name,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "snapshot published",
			"snapshot", name,
			"bytes", bytes,
		)
	}
}

// LogSwap logs a replica moving from one serving snapshot to another.
func (l *Logger) LogSwap(ctx context.Context, previous, installed string, err error) {
	if err != nil {
		l.ErrorContext(ctx, "snapshot swap failed",
			"serving", previous,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "snapshot swapped",
			"previous", previous,
			"installed", installed,
		)
	}
}
