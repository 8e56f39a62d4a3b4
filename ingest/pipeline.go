package ingest

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/brainos/retrieval/chunk"
	"github.com/brainos/retrieval/encode"
	"github.com/brainos/retrieval/model"
)

// ErrPipelineClosed rejects submissions after Close.
var ErrPipelineClosed = errors.New("ingest: pipeline closed")

// Stages a chunk can be lost in.
const (
	StageEncode = "encode"
	StageWrite  = "write"
)

// Failure records one chunk lost during ingestion and the stage that
// dropped it.
type Failure struct {
	ChunkID string
	Stage   string
	Err     error
}

// Report summarizes one ingestion run. Elements counts the raw layout
// input, Built the chunks produced from it, Indexed the chunks committed
// to the store. Built - EncodeFailed - WriteFailed == Indexed unless the
// run aborted early.
type Report struct {
	Source       string
	Elements     int
	Built        int
	EncodeFailed int
	WriteFailed  int
	Indexed      int
	Failures     []Failure
}

// Job tracks one asynchronous ingestion run. Its result is valid once the
// Done channel is closed.
type Job struct {
	source string
	done   chan struct{}
	report Report
	err    error
}

// Source returns the document the job ingests.
func (j *Job) Source() string { return j.source }

// Done returns a channel closed when the job finishes.
func (j *Job) Done() <-chan struct{} { return j.done }

// Err returns the job's abort error. Valid after Done is closed.
func (j *Job) Err() error {
	select {
	case <-j.done:
		return j.err
	default:
		return nil
	}
}

// Report returns the job's outcome. Valid after Done is closed.
func (j *Job) Report() Report {
	select {
	case <-j.done:
		return j.report
	default:
		return Report{Source: j.source}
	}
}

// Wait blocks until the job finishes or ctx is done. Cancelling the wait
// does not cancel the job.
func (j *Job) Wait(ctx context.Context) (Report, error) {
	select {
	case <-ctx.Done():
		return Report{Source: j.source}, ctx.Err()
	case <-j.done:
		return j.report, j.err
	}
}

// Pipeline ties the chunk builder, the dual encoder, and the writer into
// one ingestion path. Documents are submitted as jobs that run in the
// background; encoding runs on the encoder's worker pool while store
// writes are serialized, so concurrent jobs never interleave partial
// batches in the same collection.
type Pipeline struct {
	builder *chunk.Builder
	encoder *encode.Encoder
	writer  *Writer
	logger  *slog.Logger

	writeMu sync.Mutex
	wg      sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

// NewPipeline assembles a pipeline from its three stages. The writer's
// logger is shared by the pipeline.
func NewPipeline(builder *chunk.Builder, encoder *encode.Encoder, writer *Writer) *Pipeline {
	return &Pipeline{
		builder: builder,
		encoder: encoder,
		writer:  writer,
		logger:  writer.opts.logger,
	}
}

// Submit schedules one document for ingestion and returns immediately.
// The job runs under ctx: cancelling it keeps chunks already committed
// and discards the remainder.
func (p *Pipeline) Submit(ctx context.Context, source string, elements []model.Element) (*Job, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ErrPipelineClosed
	}
	p.wg.Add(1)
	p.mu.Unlock()

	job := &Job{source: source, done: make(chan struct{})}
	go func() {
		defer p.wg.Done()
		defer close(job.done)
		job.report, job.err = p.process(ctx, source, elements)
	}()
	return job, nil
}

// Close marks the pipeline closed and waits for in-flight jobs.
func (p *Pipeline) Close() error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	p.wg.Wait()
	return nil
}

func (p *Pipeline) process(ctx context.Context, source string, elements []model.Element) (Report, error) {
	report := Report{Source: source, Elements: len(elements)}

	if err := p.writer.EnsureCollection(); err != nil {
		return report, err
	}

	built, err := p.builder.Build(source, elements)
	if err != nil {
		return report, err
	}
	report.Built = len(built)
	if len(built) == 0 {
		p.logger.Debug("document produced no chunks", "source", source, "elements", len(elements))
		return report, nil
	}

	encoded, encodeFailed, err := p.encoder.Encode(ctx, built)
	if err != nil {
		return report, err
	}
	report.EncodeFailed = len(encodeFailed)
	for i := range encodeFailed {
		report.Failures = append(report.Failures, Failure{
			ChunkID: encodeFailed[i].ChunkID,
			Stage:   StageEncode,
			Err:     encodeFailed[i].Err,
		})
	}

	p.writeMu.Lock()
	committed, writeFailed, err := p.writer.Upsert(ctx, encoded)
	p.writeMu.Unlock()

	report.Indexed = committed
	report.WriteFailed = len(writeFailed)
	for _, f := range writeFailed {
		report.Failures = append(report.Failures, Failure{
			ChunkID: f.ChunkID,
			Stage:   StageWrite,
			Err:     f.Err,
		})
	}
	if err != nil {
		return report, err
	}

	p.logger.Debug("document ingested",
		"source", source,
		"collection", p.writer.Collection(),
		"elements", report.Elements,
		"built", report.Built,
		"indexed", report.Indexed,
		"failed", len(report.Failures))
	return report, nil
}
