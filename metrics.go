package retrieval

import (
	"sync/atomic"
	"time"
)

// MetricsCollector receives operation timings from the facade. Implement it
// to feed a monitoring system; BasicMetrics is an in-process fallback.
type MetricsCollector interface {
	// RecordIngest is called after each document run. indexed and failed
	// count chunks; err is non-nil when the run aborted.
	RecordIngest(indexed, failed int, duration time.Duration, err error)

	// RecordQuery is called after each hybrid query. results counts the
	// returned citations.
	RecordQuery(k, results int, duration time.Duration, err error)

	// RecordSnapshot is called after each snapshot publish.
	RecordSnapshot(duration time.Duration, err error)

	// RecordSync is called after each replica sync cycle.
	RecordSync(duration time.Duration, err error)
}

// NoopMetrics discards all measurements.
type NoopMetrics struct{}

func (NoopMetrics) RecordIngest(int, int, time.Duration, error) {}
func (NoopMetrics) RecordQuery(int, int, time.Duration, error)  {}
func (NoopMetrics) RecordSnapshot(time.Duration, error)         {}
func (NoopMetrics) RecordSync(time.Duration, error)             {}

// BasicMetrics collects in-memory counters with atomic updates. Useful for
// tests and basic monitoring without an external system.
type BasicMetrics struct {
	IngestRuns       atomic.Int64
	IngestErrors     atomic.Int64
	ChunksIndexed    atomic.Int64
	ChunksFailed     atomic.Int64
	QueryCount       atomic.Int64
	QueryErrors      atomic.Int64
	QueryTotalNanos  atomic.Int64
	SnapshotCount    atomic.Int64
	SnapshotErrors   atomic.Int64
	SyncCount        atomic.Int64
	SyncErrors       atomic.Int64
}

// RecordIngest implements MetricsCollector.
func (b *BasicMetrics) RecordIngest(indexed, failed int, duration time.Duration, err error) {
	b.IngestRuns.Add(1)
	b.ChunksIndexed.Add(int64(indexed))
	b.ChunksFailed.Add(int64(failed))
	if err != nil {
		b.IngestErrors.Add(1)
	}
}

// RecordQuery implements MetricsCollector.
func (b *BasicMetrics) RecordQuery(k, results int, duration time.Duration, err error) {
	b.QueryCount.Add(1)
	b.QueryTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.QueryErrors.Add(1)
	}
}

// RecordSnapshot implements MetricsCollector.
func (b *BasicMetrics) RecordSnapshot(duration time.Duration, err error) {
	b.SnapshotCount.Add(1)
	if err != nil {
		b.SnapshotErrors.Add(1)
	}
}

// RecordSync implements MetricsCollector.
func (b *BasicMetrics) RecordSync(duration time.Duration, err error) {
	b.SyncCount.Add(1)
	if err != nil {
		b.SyncErrors.Add(1)
	}
}

// GetStats returns a consistent snapshot of the counters.
func (b *BasicMetrics) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		IngestRuns:     b.IngestRuns.Load(),
		IngestErrors:   b.IngestErrors.Load(),
		ChunksIndexed:  b.ChunksIndexed.Load(),
		ChunksFailed:   b.ChunksFailed.Load(),
		QueryCount:     b.QueryCount.Load(),
		QueryErrors:    b.QueryErrors.Load(),
		QueryAvgNanos:  b.queryAvgNanos(),
		SnapshotCount:  b.SnapshotCount.Load(),
		SnapshotErrors: b.SnapshotErrors.Load(),
		SyncCount:      b.SyncCount.Load(),
		SyncErrors:     b.SyncErrors.Load(),
	}
}

func (b *BasicMetrics) queryAvgNanos() int64 {
	count := b.QueryCount.Load()
	if count == 0 {
		return 0
	}
	return b.QueryTotalNanos.Load() / count
}

// BasicMetricsStats is a point-in-time view of BasicMetrics.
type BasicMetricsStats struct {
	IngestRuns     int64
	IngestErrors   int64
	ChunksIndexed  int64
	ChunksFailed   int64
	QueryCount     int64
	QueryErrors    int64
	QueryAvgNanos  int64
	SnapshotCount  int64
	SnapshotErrors int64
	SyncCount      int64
	SyncErrors     int64
}
