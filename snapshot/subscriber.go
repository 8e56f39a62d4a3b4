package snapshot

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/brainos/retrieval/blobstore"
	ihash "github.com/brainos/retrieval/internal/hash"
	"github.com/brainos/retrieval/store"
)

// Subscriber installs published snapshots into a replica directory and
// reloads the serving store. Sync cycles are serialized; the swap is the
// only exclusive section, and it excludes only other swaps because the
// store reload is an atomic pointer swap.
type Subscriber struct {
	store      *store.Store
	blobs      blobstore.BlobStore
	pointers   blobstore.PointerStore
	collection string
	dir        string
	opts       options

	mu sync.Mutex // one sync cycle at a time

	stateMu sync.Mutex
	state   State
}

// NewSubscriber creates a subscriber that installs snapshots of collection
// into the replica store s.
func NewSubscriber(s *store.Store, blobs blobstore.BlobStore, pointers blobstore.PointerStore, collection string, optFns ...Option) (*Subscriber, error) {
	if s.Dir() == "" {
		return nil, errors.New("snapshot: subscriber requires a replica store opened on a directory")
	}
	return &Subscriber{
		store:      s,
		blobs:      blobs,
		pointers:   pointers,
		collection: collection,
		dir:        s.Dir(),
		opts:       applyOptions(optFns),
		state:      StateIdle,
	}, nil
}

// State returns the state of the current or last cycle.
func (s *Subscriber) State() State {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return s.state
}

func (s *Subscriber) transition(to State) {
	s.stateMu.Lock()
	from := s.state
	s.state = to
	s.stateMu.Unlock()
	if from == to {
		return
	}
	s.opts.logger.Debug("subscriber transition",
		"collection", s.collection, "from", from, "to", to)
	s.opts.onTransition(from, to)
}

// Sync runs one pull cycle: read the Latest Pointer, download and verify
// the named snapshot, install it atomically, and reload the store. It
// returns the snapshot name now serving. A bridge with no published
// snapshot yet returns "". Any failure keeps the previous snapshot
// serving.
func (s *Subscriber) Sync(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	name, err := s.sync(ctx)
	if err != nil {
		s.transition(StateFailed)
		s.opts.logger.Warn("sync failed",
			"collection", s.collection, "error", err)
		return "", err
	}
	return name, nil
}

func (s *Subscriber) sync(ctx context.Context) (string, error) {
	s.transition(StatePulling)

	ptr, ok, err := s.loadPointer(ctx)
	if err != nil {
		return "", err
	}
	if !ok {
		s.transition(StateIdle)
		s.opts.logger.Debug("no snapshot published yet", "collection", s.collection)
		return "", nil
	}

	current, err := store.ReadCurrent(s.dir)
	if err != nil {
		return "", err
	}
	if current == ptr.Snapshot {
		s.transition(StateServing)
		return current, nil
	}

	manifest, err := s.loadManifest(ctx, ptr.Snapshot)
	if err != nil {
		return "", err
	}

	archivePath, cleanup, err := s.download(ctx, manifest)
	if err != nil {
		return "", err
	}
	defer cleanup()

	s.transition(StateVerifying)
	if err := s.verify(archivePath, manifest); err != nil {
		return "", err
	}

	s.transition(StateSwapping)
	if err := s.install(ctx, manifest.Name); err != nil {
		return "", err
	}

	s.transition(StateServing)
	s.opts.logger.Info("snapshot installed",
		"collection", s.collection,
		"snapshot", manifest.Name,
		"chunks", manifest.Chunks,
		"bytes", manifest.Bytes)
	return manifest.Name, nil
}

// loadPointer reads the Latest Pointer. ok is false when nothing has been
// published yet.
func (s *Subscriber) loadPointer(ctx context.Context) (Pointer, bool, error) {
	data, err := s.pointers.LoadPointer(ctx, pointerKey(s.opts.prefix, s.collection))
	if errors.Is(err, blobstore.ErrNotFound) {
		return Pointer{}, false, nil
	}
	if err != nil {
		return Pointer{}, false, fmt.Errorf("snapshot: load pointer: %w", err)
	}

	var ptr Pointer
	if err := s.opts.codec.Unmarshal(data, &ptr); err != nil {
		return Pointer{}, false, fmt.Errorf("snapshot: decode pointer: %w", err)
	}
	if ptr.Snapshot == "" || strings.ContainsAny(ptr.Snapshot, "/\\\n") {
		return Pointer{}, false, fmt.Errorf("snapshot: pointer names invalid snapshot %q", ptr.Snapshot)
	}
	return ptr, true, nil
}

func (s *Subscriber) loadManifest(ctx context.Context, name string) (Manifest, error) {
	key := manifestKey(s.opts.prefix, s.collection, name)
	data, err := blobstore.ReadAll(ctx, s.blobs, key)
	if err != nil {
		return Manifest{}, fmt.Errorf("snapshot: read %s: %w", key, err)
	}

	var m Manifest
	if err := s.opts.codec.Unmarshal(data, &m); err != nil {
		return Manifest{}, fmt.Errorf("snapshot: decode %s: %w", key, err)
	}
	if m.FormatVersion > store.FormatVersion {
		return Manifest{}, fmt.Errorf("snapshot: %s format v%d is newer than supported v%d",
			name, m.FormatVersion, store.FormatVersion)
	}
	if m.Collection != s.collection {
		return Manifest{}, fmt.Errorf("snapshot: %s holds collection %q, subscribed to %q",
			name, m.Collection, s.collection)
	}
	return m, nil
}

// download stages the archive under versions/<name>.tmp. The returned
// cleanup removes the staging directory; it is a no-op once the directory
// was renamed into place.
func (s *Subscriber) download(ctx context.Context, m Manifest) (string, func(), error) {
	versionsDir := filepath.Join(s.dir, store.VersionsDir)
	if err := os.MkdirAll(versionsDir, 0o755); err != nil {
		return "", nil, fmt.Errorf("snapshot: create %s: %w", versionsDir, err)
	}

	tmpDir := filepath.Join(versionsDir, m.Name+".tmp")
	if err := os.RemoveAll(tmpDir); err != nil {
		return "", nil, fmt.Errorf("snapshot: clear stale staging %s: %w", tmpDir, err)
	}
	if err := os.MkdirAll(tmpDir, 0o755); err != nil {
		return "", nil, fmt.Errorf("snapshot: create staging %s: %w", tmpDir, err)
	}
	cleanup := func() { _ = os.RemoveAll(tmpDir) }

	archivePath := filepath.Join(tmpDir, s.collection+store.ArchiveExt)
	if err := s.fetchArchive(ctx, m, archivePath); err != nil {
		cleanup()
		return "", nil, err
	}
	return archivePath, cleanup, nil
}

func (s *Subscriber) fetchArchive(ctx context.Context, m Manifest, dst string) error {
	key := archiveKey(s.opts.prefix, s.collection, m.Name)

	f, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("snapshot: create %s: %w", dst, err)
	}
	defer f.Close()

	if _, err := blobstore.Copy(ctx, f, s.blobs, key); err != nil {
		return fmt.Errorf("snapshot: download %s: %w", key, err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("snapshot: sync %s: %w", dst, err)
	}
	return nil
}

// verify recomputes size and CRC32-C of the downloaded archive against the
// manifest. A mismatch aborts the cycle before anything is installed.
func (s *Subscriber) verify(archivePath string, m Manifest) error {
	f, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("snapshot: verify open %s: %w", archivePath, err)
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return fmt.Errorf("snapshot: verify stat %s: %w", archivePath, err)
	}
	if fi.Size() != m.Bytes {
		return fmt.Errorf("%w: %s downloaded %d bytes, manifest records %d",
			ErrChecksumMismatch, m.Name, fi.Size(), m.Bytes)
	}

	sum, err := ihash.CRC32CReader(f)
	if err != nil {
		return fmt.Errorf("snapshot: verify read %s: %w", archivePath, err)
	}
	if sum != m.Checksum {
		return fmt.Errorf("%w: %s checksum %08x, manifest records %08x",
			ErrChecksumMismatch, m.Name, sum, m.Checksum)
	}
	return nil
}

// install renames the staging directory into place, repoints CURRENT, and
// reloads the store. Everything before the reload is temp+rename, so a
// crash never leaves a mixed installation.
func (s *Subscriber) install(ctx context.Context, name string) error {
	versionsDir := filepath.Join(s.dir, store.VersionsDir)
	tmpDir := filepath.Join(versionsDir, name+".tmp")
	finalDir := filepath.Join(versionsDir, name)

	// A crash after a previous rename can leave the final directory behind
	// while CURRENT still names the old snapshot. It is unreferenced, so
	// replacing it is safe.
	if err := os.RemoveAll(finalDir); err != nil {
		return fmt.Errorf("snapshot: clear %s: %w", finalDir, err)
	}
	if err := os.Rename(tmpDir, finalDir); err != nil {
		return fmt.Errorf("snapshot: install %s: %w", name, err)
	}

	if err := store.WriteCurrent(s.dir, name); err != nil {
		return err
	}
	return s.store.Reload(ctx)
}
