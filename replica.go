package retrieval

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/brainos/retrieval/cite"
	"github.com/brainos/retrieval/config"
	"github.com/brainos/retrieval/embedding"
	"github.com/brainos/retrieval/encode"
	"github.com/brainos/retrieval/model"
	"github.com/brainos/retrieval/query"
	"github.com/brainos/retrieval/snapshot"
	"github.com/brainos/retrieval/store"
)

// Replica is the reader-side facade: a read-only store fed by snapshot
// syncs from the bridge, answering the same queries as the writer. It
// never ingests.
type Replica struct {
	cfg  config.Config
	opts options

	store      *store.Store
	subscriber *snapshot.Subscriber
	embedder   embedding.Embedder

	querier

	mu      sync.Mutex
	serving string

	closeOnce sync.Once
	closeErr  error
}

// OpenReplica opens (or creates) a replica rooted at dir and prepares it to
// follow the writer's snapshots. A bridge attached with WithBridge is
// required. If dir already holds an installed snapshot it serves
// immediately; otherwise the replica is empty until the first Sync.
func OpenReplica(cfg *config.Config, dir string, optFns ...Option) (*Replica, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	opts := applyOptions(optFns)
	if opts.bridge == nil {
		return nil, errors.New("retrieval: replica requires a bridge, attach one with WithBridge")
	}

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

	st, err := store.Open(dir, store.WithLogger(opts.logger.Logger))
	if err != nil {
		return nil, err
	}
	serving, err := store.ReadCurrent(dir)
	if err != nil {
		return nil, err
	}

	sub, err := snapshot.NewSubscriber(st, opts.bridge, opts.pointers, cfg.Collection.Name,
		snapshot.WithPrefix(cfg.Bridge.Prefix),
		snapshot.WithLogger(opts.logger.Logger),
	)
	if err != nil {
		return nil, err
	}

	encoder := encode.New(embedder, cfg.Collection.DenseDimension, encodeOptions(cfg, opts)...)

	return &Replica{
		cfg:        *cfg,
		opts:       opts,
		store:      st,
		subscriber: sub,
		embedder:   embedder,
		serving:    serving,
		querier: querier{
			engine:      query.New(st, encoder, cfg.Collection.Name, queryOptions(cfg, opts)...),
			assembler:   cite.New(),
			synthesizer: synthesizer,
			logger:      opts.logger,
			metrics:     opts.metrics,
		},
	}, nil
}

// Sync pulls the latest published snapshot and atomically swaps it in. It
// returns the snapshot now serving, "" if none has been published yet. A
// failed sync leaves the previously installed snapshot serving.
func (r *Replica) Sync(ctx context.Context) (string, error) {
	start := time.Now()
	name, err := r.subscriber.Sync(ctx)
	r.opts.metrics.RecordSync(time.Since(start), err)
	if err != nil {
		r.opts.logger.LogSwap(ctx, r.Serving(), "", err)
		return "", opError("sync", err)
	}

	r.mu.Lock()
	previous := r.serving
	r.serving = name
	r.mu.Unlock()

	if name != previous {
		r.opts.logger.LogSwap(ctx, previous, name, nil)
	}
	return name, nil
}

// Serving returns the name of the installed snapshot, "" before the first
// successful sync on a fresh directory.
func (r *Replica) Serving() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.serving
}

// State reports the subscriber's replication state.
func (r *Replica) State() snapshot.State {
	return r.subscriber.State()
}

// Query answers a research request against the installed snapshot. Before
// the first sync the replica holds no collections and the query reports
// the collection as not found.
func (r *Replica) Query(ctx context.Context, req model.QueryRequest) (model.QueryResponse, error) {
	return r.querier.query(ctx, req)
}

// Collection returns the configured collection name.
func (r *Replica) Collection() string { return r.cfg.Collection.Name }

// Store exposes the underlying replica store for inspection.
func (r *Replica) Store() *store.Store { return r.store }

// Close releases the capability clients. The store itself holds no
// descriptors between operations.
func (r *Replica) Close() error {
	r.closeOnce.Do(func() {
		r.closeErr = firstErr(
			r.embedder.Close(),
			r.synthesizer.Close(),
		)
	})
	return r.closeErr
}
