package snapshot

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/brainos/retrieval/blobstore"
	ihash "github.com/brainos/retrieval/internal/hash"
	"github.com/brainos/retrieval/store"
)

// Publisher replicates one collection from a writer store to the bridge.
// Cycles are serialized; queries against the store keep running while the
// archive streams, and a failed cycle leaves the Latest Pointer untouched.
type Publisher struct {
	store      *store.Store
	blobs      blobstore.BlobStore
	pointers   blobstore.PointerStore
	collection string
	opts       options

	mu sync.Mutex // one publish cycle at a time

	stateMu sync.Mutex
	state   State
}

// NewPublisher creates a publisher for one collection of s.
func NewPublisher(s *store.Store, blobs blobstore.BlobStore, pointers blobstore.PointerStore, collection string, optFns ...Option) *Publisher {
	return &Publisher{
		store:      s,
		blobs:      blobs,
		pointers:   pointers,
		collection: collection,
		opts:       applyOptions(optFns),
		state:      StateIdle,
	}
}

// State returns the state of the current or last cycle.
func (p *Publisher) State() State {
	p.stateMu.Lock()
	defer p.stateMu.Unlock()
	return p.state
}

func (p *Publisher) transition(to State) {
	p.stateMu.Lock()
	from := p.state
	p.state = to
	p.stateMu.Unlock()
	if from == to {
		return
	}
	p.opts.logger.Debug("publisher transition",
		"collection", p.collection, "from", from, "to", to)
	p.opts.onTransition(from, to)
}

// Publish runs one replication cycle: stream the collection archive to a
// local spool, upload archive and manifest under a fresh snapshot name,
// verify the upload, then move the Latest Pointer. Returns the manifest of
// the published snapshot.
func (p *Publisher) Publish(ctx context.Context) (Manifest, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	name := NewName(p.opts.now())

	manifest, err := p.publish(ctx, name)
	if err != nil {
		p.transition(StateFailed)
		p.opts.logger.Warn("publish failed",
			"collection", p.collection, "snapshot", name, "error", err)
		return Manifest{}, err
	}

	p.transition(StatePublished)
	p.opts.logger.Info("snapshot published",
		"collection", p.collection,
		"snapshot", name,
		"chunks", manifest.Chunks,
		"bytes", manifest.Bytes,
		"checksum", fmt.Sprintf("%08x", manifest.Checksum))
	return manifest, nil
}

func (p *Publisher) publish(ctx context.Context, name string) (Manifest, error) {
	p.transition(StateCreating)

	spool, err := os.CreateTemp("", "snapshot-*"+store.ArchiveExt)
	if err != nil {
		return Manifest{}, fmt.Errorf("snapshot: create spool: %w", err)
	}
	defer func() {
		_ = spool.Close()
		_ = os.Remove(spool.Name())
	}()

	info, err := p.store.Snapshot(ctx, p.collection, spool)
	if err != nil {
		return Manifest{}, err
	}

	manifest := Manifest{
		Name:          name,
		Collection:    info.Collection,
		Schema:        info.Schema,
		Chunks:        info.Chunks,
		Bytes:         info.Bytes,
		Checksum:      info.Checksum,
		FormatVersion: store.FormatVersion,
		CreatedAt:     info.CreatedAt,
	}

	p.transition(StateTransferring)

	if err := p.upload(ctx, spool, manifest); err != nil {
		return Manifest{}, err
	}
	if err := p.verifyUpload(ctx, manifest); err != nil {
		return Manifest{}, err
	}

	ptr, err := p.opts.codec.Marshal(Pointer{Snapshot: name, UpdatedAt: p.opts.now().UTC()})
	if err != nil {
		return Manifest{}, fmt.Errorf("snapshot: encode pointer: %w", err)
	}
	if err := p.pointers.SavePointer(ctx, pointerKey(p.opts.prefix, p.collection), ptr); err != nil {
		return Manifest{}, fmt.Errorf("snapshot: save pointer: %w", err)
	}
	return manifest, nil
}

// upload streams the spooled archive and then the manifest to the bridge.
// The archive blob becomes visible only when its Close succeeds.
func (p *Publisher) upload(ctx context.Context, spool *os.File, m Manifest) error {
	if _, err := spool.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("snapshot: rewind spool: %w", err)
	}

	key := archiveKey(p.opts.prefix, p.collection, m.Name)
	w, err := p.blobs.Create(ctx, key)
	if err != nil {
		return fmt.Errorf("snapshot: create %s: %w", key, err)
	}
	if _, err := io.Copy(w, spool); err != nil {
		_ = w.Close()
		return fmt.Errorf("snapshot: transfer %s: %w", key, err)
	}
	if err := w.Sync(); err != nil {
		_ = w.Close()
		return fmt.Errorf("snapshot: sync %s: %w", key, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("snapshot: publish %s: %w", key, err)
	}

	data, err := p.opts.codec.Marshal(m)
	if err != nil {
		return fmt.Errorf("snapshot: encode manifest: %w", err)
	}
	mkey := manifestKey(p.opts.prefix, p.collection, m.Name)
	if err := p.blobs.Put(ctx, mkey, data); err != nil {
		return fmt.Errorf("snapshot: put %s: %w", mkey, err)
	}
	return nil
}

// verifyUpload reads the uploaded archive back and compares size and
// CRC32-C against the manifest, so the pointer never moves onto a snapshot
// the bridge cannot reproduce intact.
func (p *Publisher) verifyUpload(ctx context.Context, m Manifest) error {
	key := archiveKey(p.opts.prefix, p.collection, m.Name)
	blob, err := p.blobs.Open(ctx, key)
	if err != nil {
		return fmt.Errorf("snapshot: verify open %s: %w", key, err)
	}
	defer blob.Close()

	if blob.Size() != m.Bytes {
		return fmt.Errorf("%w: %s uploaded %d bytes, manifest records %d",
			ErrChecksumMismatch, key, blob.Size(), m.Bytes)
	}

	rc, err := blob.ReadRange(ctx, 0, blob.Size())
	if err != nil {
		return fmt.Errorf("snapshot: verify read %s: %w", key, err)
	}
	defer rc.Close()

	sum, err := ihash.CRC32CReader(rc)
	if err != nil {
		return fmt.Errorf("snapshot: verify read %s: %w", key, err)
	}
	if sum != m.Checksum {
		return fmt.Errorf("%w: %s checksum %08x, manifest records %08x",
			ErrChecksumMismatch, key, sum, m.Checksum)
	}
	return nil
}
