package retrieval

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/brainos/retrieval/chunk"
	"github.com/brainos/retrieval/cite"
	"github.com/brainos/retrieval/config"
	"github.com/brainos/retrieval/embedding"
	"github.com/brainos/retrieval/encode"
	"github.com/brainos/retrieval/ingest"
	"github.com/brainos/retrieval/layout"
	"github.com/brainos/retrieval/model"
	"github.com/brainos/retrieval/query"
	"github.com/brainos/retrieval/snapshot"
	"github.com/brainos/retrieval/store"
	"github.com/brainos/retrieval/synthesis"
)

// noEvidenceAnswer is returned as the reasoning text when retrieval finds
// nothing to cite. The synthesizer is not called in that case, so a grounded
// answer can never be hallucinated from an empty context.
const noEvidenceAnswer = "No relevant context was found in the indexed documents for this query."

// ingestExts lists the file extensions IngestDirectory picks up. Anything
// else in the directory is skipped silently.
var ingestExts = map[string]bool{
	".txt":  true,
	".text": true,
	".md":   true,
	".pdf":  true,
}

// querier runs the retrieve-assemble-synthesize flow shared by Service and
// Replica.
type querier struct {
	engine      *query.Engine
	assembler   *cite.Assembler
	synthesizer synthesis.Synthesizer
	logger      *Logger
	metrics     MetricsCollector
}

func (q *querier) query(ctx context.Context, req model.QueryRequest) (model.QueryResponse, error) {
	start := time.Now()

	results, err := q.engine.Search(ctx, req.Query, req.TopK)
	if err != nil {
		q.metrics.RecordQuery(req.TopK, 0, time.Since(start), err)
		q.logger.LogSearch(ctx, req.TopK, 0, err)
		return model.QueryResponse{}, opError("query", err)
	}

	asm := q.assembler.Assemble(results)
	reasoning := noEvidenceAnswer
	if len(asm.Citations) > 0 {
		prompt := synthesis.BuildUserPrompt(req.Query, asm.Context)
		reasoning, err = q.synthesizer.Synthesize(ctx, synthesis.DeepResearchPrompt, prompt)
		if err != nil {
			q.metrics.RecordQuery(req.TopK, len(asm.Citations), time.Since(start), err)
			q.logger.LogSearch(ctx, req.TopK, len(asm.Citations), err)
			return model.QueryResponse{}, opError("synthesize", err)
		}
	}

	q.metrics.RecordQuery(req.TopK, len(asm.Citations), time.Since(start), nil)
	q.logger.LogSearch(ctx, req.TopK, len(asm.Citations), nil)

	return model.QueryResponse{
		Citations: asm.Citations,
		Reasoning: reasoning,
		Query:     req.Query,
	}, nil
}

// Service is the writer-side facade: it owns the in-memory store, the
// ingestion pipeline, the hybrid query engine, and, when a bridge is
// attached, the snapshot publisher. All methods are safe for concurrent
// use.
type Service struct {
	cfg  config.Config
	opts options

	store     *store.Store
	embedder  embedding.Embedder
	parser    layout.Parser
	pipeline  *ingest.Pipeline
	publisher *snapshot.Publisher

	querier

	watchers  sync.WaitGroup
	closeOnce sync.Once
	closeErr  error
}

// New builds a Service from the config. A nil cfg selects the defaults.
// Capabilities resolve from the config unless overridden with WithEmbedder,
// WithSynthesizer, or WithParser; use WithBridge to enable Publish.
//
// The embedder's dimensions must agree with collection.dense_dimension, so
// a misconfigured model fails here instead of on the first ingested chunk.
func New(cfg *config.Config, optFns ...Option) (*Service, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	opts := applyOptions(optFns)

	embedder := opts.embedder
	if embedder == nil {
		var err error
		embedder, err = newEmbedder(cfg)
		if err != nil {
			return nil, err
		}
	}
	if got := embedder.Dimensions(); got != cfg.Collection.DenseDimension {
		return nil, fmt.Errorf("retrieval: embedder %s produces %d-dimensional vectors, collection %s is configured for %d",
			embedder.ModelName(), got, cfg.Collection.Name, cfg.Collection.DenseDimension)
	}

	synthesizer := opts.synthesizer
	if synthesizer == nil {
		synthesizer = newSynthesizer(cfg)
	}
	parser := opts.parser
	if parser == nil {
		parser = layout.NewPlainText()
	}

	st := store.New(store.WithLogger(opts.logger.Logger))
	schema := model.DefaultSchema(cfg.Collection.DenseDimension)
	if _, err := st.EnsureCollection(cfg.Collection.Name, schema); err != nil {
		return nil, err
	}

	encoder := encode.New(embedder, cfg.Collection.DenseDimension, encodeOptions(cfg, opts)...)
	builder := chunk.New(
		chunk.WithMinChars(cfg.Ingest.MinChars),
		chunk.WithMaxChars(cfg.Ingest.MaxChars),
		chunk.WithLogger(opts.logger.Logger),
	)
	writer := ingest.NewWriter(st, cfg.Collection.Name, schema,
		ingest.WithBatchSize(cfg.Ingest.BatchSize),
		ingest.WithLogger(opts.logger.Logger),
	)

	svc := &Service{
		cfg:      *cfg,
		opts:     opts,
		store:    st,
		embedder: embedder,
		parser:   parser,
		pipeline: ingest.NewPipeline(builder, encoder, writer),
		querier: querier{
			engine:      query.New(st, encoder, cfg.Collection.Name, queryOptions(cfg, opts)...),
			assembler:   cite.New(),
			synthesizer: synthesizer,
			logger:      opts.logger,
			metrics:     opts.metrics,
		},
	}
	if opts.bridge != nil {
		svc.publisher = snapshot.NewPublisher(st, opts.bridge, opts.pointers, cfg.Collection.Name,
			snapshot.WithPrefix(cfg.Bridge.Prefix),
			snapshot.WithLogger(opts.logger.Logger),
		)
	}
	return svc, nil
}

func encodeOptions(cfg *config.Config, opts options) []encode.Option {
	fns := []encode.Option{
		encode.WithTimeout(time.Duration(cfg.Embedding.TimeoutSecs) * time.Second),
		encode.WithLogger(opts.logger.Logger),
	}
	if n := cfg.Embedding.RateLimit.MaxConcurrent; n > 0 {
		fns = append(fns, encode.WithConcurrency(n))
	}
	return fns
}

func queryOptions(cfg *config.Config, opts options) []query.Option {
	return []query.Option{
		query.WithFusionWeights(cfg.Query.DenseWeight, cfg.Query.SparseWeight),
		query.WithBranchTimeout(time.Duration(cfg.Query.BranchTimeoutSecs) * time.Second),
		query.WithLogger(opts.logger.Logger),
	}
}

// Ingest submits pre-parsed layout elements for one document and returns
// the running job. Use Job.Wait for the outcome; re-submitting the same
// document converges because chunk identity is deterministic.
func (s *Service) Ingest(ctx context.Context, source string, elements []model.Element) (*ingest.Job, error) {
	job, err := s.pipeline.Submit(ctx, source, elements)
	if err != nil {
		return nil, opError("ingest", err)
	}
	s.watchers.Add(1)
	go s.watchJob(ctx, job)
	return job, nil
}

// watchJob records metrics and the summary log line once a job finishes.
func (s *Service) watchJob(ctx context.Context, job *ingest.Job) {
	defer s.watchers.Done()
	start := time.Now()
	<-job.Done()
	report := job.Report()
	failed := report.EncodeFailed + report.WriteFailed
	s.opts.metrics.RecordIngest(report.Indexed, failed, time.Since(start), job.Err())
	s.opts.logger.LogIngest(ctx, report.Source, report.Indexed, failed, job.Err())
}

// IngestFile parses one document with the configured layout engine and
// submits it. The file's base name becomes the citation source.
func (s *Service) IngestFile(ctx context.Context, path string) (*ingest.Job, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, opError("ingest", err)
	}
	defer f.Close()

	source := filepath.Base(path)
	elements, err := s.parser.Parse(ctx, source, f)
	if err != nil {
		return nil, opError("ingest", fmt.Errorf("parse %s: %w", source, err))
	}
	return s.Ingest(ctx, source, elements)
}

// IngestDirectory submits every supported document in dir, non-recursively.
// Dotfiles and unsupported extensions are skipped. It returns the jobs
// submitted so far and the first error that stopped the scan.
func (s *Service) IngestDirectory(ctx context.Context, dir string) ([]*ingest.Job, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, opError("ingest", err)
	}

	var jobs []*ingest.Job
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		if !ingestExts[strings.ToLower(filepath.Ext(entry.Name()))] {
			continue
		}
		job, err := s.IngestFile(ctx, filepath.Join(dir, entry.Name()))
		if err != nil {
			return jobs, err
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

// Query answers a research request: hybrid retrieval, citation assembly,
// then grounded synthesis over the retrieved context. When nothing relevant
// is found the response carries no citations and a fixed no-evidence
// answer.
func (s *Service) Query(ctx context.Context, req model.QueryRequest) (model.QueryResponse, error) {
	return s.querier.query(ctx, req)
}

// Publish uploads a point-in-time snapshot of the collection to the bridge
// store and moves the Latest Pointer. It requires a bridge attached with
// WithBridge.
func (s *Service) Publish(ctx context.Context) (snapshot.Manifest, error) {
	if s.publisher == nil {
		return snapshot.Manifest{}, opError("publish", errNoBridge)
	}
	start := time.Now()
	m, err := s.publisher.Publish(ctx)
	s.opts.metrics.RecordSnapshot(time.Since(start), err)
	s.opts.logger.LogSnapshot(ctx, m.Name, m.Bytes, err)
	if err != nil {
		return snapshot.Manifest{}, opError("publish", err)
	}
	return m, nil
}

// Ping verifies both external capabilities concurrently and reports the
// first failure.
func (s *Service) Ping(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := s.embedder.Ping(ctx); err != nil {
			return fmt.Errorf("embedder %s: %w", s.embedder.ModelName(), err)
		}
		return nil
	})
	g.Go(func() error {
		if err := s.synthesizer.Ping(ctx); err != nil {
			return fmt.Errorf("synthesizer: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return opError("ping", err)
	}
	return nil
}

// Collection returns the configured collection name.
func (s *Service) Collection() string { return s.cfg.Collection.Name }

// Store exposes the underlying writer store for inspection and snapshot
// tests.
func (s *Service) Store() *store.Store { return s.store }
