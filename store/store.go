// Package store implements the in-memory hybrid index behind ingestion and
// query: named collections of dual-encoded chunks with a fixed schema, a
// dense scan branch and a roaring-backed sparse branch, plus the snapshot
// archive format that replicates a collection to read-only replicas.
//
// Two roles share one type. A writer store (New) is mutable and lives purely
// in memory; its durable form is the snapshot archive. A replica store
// (Open) serves a directory of installed snapshots and changes only through
// Reload, which swaps the whole collection set behind an atomic pointer so
// readers never observe a mixture of two snapshot generations.
package store

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/brainos/retrieval/distance"
	"github.com/brainos/retrieval/model"
)

const (
	// CurrentFile names the file inside a replica directory that holds the
	// installed snapshot name. Rewritten via temp+rename only.
	CurrentFile = "CURRENT"

	// VersionsDir is the replica subdirectory holding one directory per
	// installed snapshot.
	VersionsDir = "versions"

	// ArchiveExt is the file extension of collection archives inside a
	// version directory.
	ArchiveExt = ".brs"
)

type collectionSet map[string]*Collection

// Store owns a set of named collections.
type Store struct {
	opts     options
	dir      string
	readOnly bool

	mu   sync.Mutex // serializes collection creation and reloads
	cols atomic.Pointer[collectionSet]
}

// New creates an empty writable in-memory store.
func New(optFns ...Option) *Store {
	s := &Store{opts: applyOptions(optFns)}
	s.cols.Store(&collectionSet{})
	return s
}

// Open creates a read-only replica store serving the snapshots installed
// under dir. A directory without an installed snapshot yields an empty
// store; the first Reload after an install populates it.
func Open(dir string, optFns ...Option) (*Store, error) {
	if dir == "" {
		return nil, fmt.Errorf("store: replica directory is empty")
	}
	s := &Store{
		opts:     applyOptions(optFns),
		dir:      dir,
		readOnly: true,
	}
	s.cols.Store(&collectionSet{})
	if err := s.Reload(context.Background()); err != nil {
		return nil, err
	}
	return s, nil
}

// ReadOnly reports whether the store is a replica.
func (s *Store) ReadOnly() bool { return s.readOnly }

// Dir returns the replica directory, or "" for an in-memory writer store.
func (s *Store) Dir() string { return s.dir }

// EnsureCollection returns the named collection, creating it on first use.
// Creation races are serialized; later callers get the existing collection
// after a schema check, so re-creation with a different schema fails with
// ErrSchemaMismatch instead of migrating anything.
func (s *Store) EnsureCollection(name string, schema model.Schema) (*Collection, error) {
	if s.readOnly {
		return nil, ErrReadOnly
	}
	if name == "" {
		return nil, fmt.Errorf("store: collection name is empty")
	}
	if err := schema.Validate(); err != nil {
		return nil, err
	}

	if col, ok := (*s.cols.Load())[name]; ok {
		return col, col.checkSchema(schema)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	set := *s.cols.Load()
	if col, ok := set[name]; ok {
		return col, col.checkSchema(schema)
	}

	col, err := newCollection(name, schema)
	if err != nil {
		return nil, err
	}
	next := make(collectionSet, len(set)+1)
	for k, v := range set {
		next[k] = v
	}
	next[name] = col
	s.cols.Store(&next)

	s.opts.logger.Info("collection created",
		"collection", name,
		"dense_dimension", schema.DenseDimension,
		"distance", schema.Distance.String(),
		"modifier", schema.Modifier.String())
	return col, nil
}

func (c *Collection) checkSchema(schema model.Schema) error {
	if !c.schema.Equal(schema) {
		return fmt.Errorf("%w: collection %s has %+v, requested %+v",
			ErrSchemaMismatch, c.name, c.schema, schema)
	}
	return nil
}

// Collection returns the named collection or ErrCollectionNotFound.
func (s *Store) Collection(name string) (*Collection, error) {
	col, ok := (*s.cols.Load())[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrCollectionNotFound, name)
	}
	return col, nil
}

// Collections returns the collection names, sorted.
func (s *Store) Collections() []string {
	set := *s.cols.Load()
	names := make([]string, 0, len(set))
	for name := range set {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Count returns the number of chunks in the named collection.
func (s *Store) Count(collection string) (int, error) {
	col, err := s.Collection(collection)
	if err != nil {
		return 0, err
	}
	return col.Count(), nil
}

// Upsert validates and indexes a batch of encoded chunks. The whole batch
// is validated before any mutation, so a rejected batch leaves the
// collection untouched. Chunks whose id already exists with identical
// content are observable no-ops; changed content replaces text and both
// vectors in one step.
func (s *Store) Upsert(ctx context.Context, collection string, chunks []model.Chunk) error {
	if s.readOnly {
		return ErrReadOnly
	}
	if len(chunks) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	col, err := s.Collection(collection)
	if err != nil {
		return err
	}
	prepared, err := prepareChunks(col, chunks)
	if err != nil {
		return err
	}

	added, updated, unchanged := col.upsert(prepared)
	s.opts.logger.Debug("chunks upserted",
		"collection", collection,
		"added", added,
		"updated", updated,
		"unchanged", unchanged)
	return nil
}

// prepareChunks validates every chunk against the collection schema and
// returns deep copies with the dense vector normalized for the collection
// metric. The caller's chunks are never mutated.
func prepareChunks(col *Collection, chunks []model.Chunk) ([]model.Chunk, error) {
	out := make([]model.Chunk, len(chunks))
	for i := range chunks {
		c := &chunks[i]
		if err := c.Validate(); err != nil {
			return nil, err
		}
		if !c.Encoded() {
			return nil, fmt.Errorf("%w: chunk %s", ErrNotEncoded, c.ID)
		}
		if len(c.Dense) != col.schema.DenseDimension {
			return nil, fmt.Errorf("%w: chunk %s dense dimension %d, collection %s expects %d",
				ErrSchemaMismatch, c.ID, len(c.Dense), col.name, col.schema.DenseDimension)
		}
		if err := c.Sparse.Validate(); err != nil {
			return nil, err
		}

		cp := c.Clone()
		if col.normalize {
			if !distance.NormalizeL2InPlace(cp.Dense) {
				return nil, fmt.Errorf("store: chunk %s has a zero-norm dense vector", c.ID)
			}
		}
		out[i] = cp
	}
	return out, nil
}

// Snapshot streams a consistent point-in-time archive of the named
// collection to w and returns its description. Concurrent queries keep
// running; writes to the collection wait until the stream completes.
func (s *Store) Snapshot(ctx context.Context, collection string, w io.Writer) (SnapshotInfo, error) {
	col, err := s.Collection(collection)
	if err != nil {
		return SnapshotInfo{}, err
	}
	info, err := col.snapshot(ctx, w, s.opts.codec, s.opts.compression)
	if err != nil {
		return SnapshotInfo{}, err
	}
	s.opts.logger.Info("snapshot written",
		"collection", info.Collection,
		"chunks", info.Chunks,
		"bytes", info.Bytes,
		"checksum", fmt.Sprintf("%08x", info.Checksum))
	return info, nil
}

// Reload re-reads the replica directory and atomically swaps the serving
// collection set to the currently installed snapshot. On any error the
// previous set keeps serving. A missing CURRENT file means no snapshot has
// been installed yet and yields an empty set.
func (s *Store) Reload(ctx context.Context) error {
	if s.dir == "" {
		return fmt.Errorf("store: reload requires a replica directory")
	}

	name, err := ReadCurrent(s.dir)
	if err != nil {
		return err
	}
	if name == "" {
		s.swap(collectionSet{})
		return nil
	}

	versionDir := filepath.Join(s.dir, VersionsDir, name)
	entries, err := os.ReadDir(versionDir)
	if err != nil {
		return fmt.Errorf("store: read snapshot %s: %w", name, err)
	}

	set := collectionSet{}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ArchiveExt {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		col, err := loadArchiveFile(filepath.Join(versionDir, entry.Name()))
		if err != nil {
			return fmt.Errorf("store: load %s: %w", entry.Name(), err)
		}
		if _, dup := set[col.Name()]; dup {
			return fmt.Errorf("%w: snapshot %s holds collection %s twice", ErrInvalidArchive, name, col.Name())
		}
		set[col.Name()] = col
	}

	s.swap(set)
	s.opts.logger.Info("store reloaded",
		"snapshot", name,
		"collections", len(set))
	return nil
}

func (s *Store) swap(set collectionSet) {
	s.mu.Lock()
	s.cols.Store(&set)
	s.mu.Unlock()
}

func loadArchiveFile(path string) (*Collection, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return readArchive(f)
}

// ReadCurrent returns the snapshot name installed under dir, or "" when no
// snapshot has been installed yet.
func ReadCurrent(dir string) (string, error) {
	data, err := os.ReadFile(filepath.Join(dir, CurrentFile))
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// WriteCurrent atomically points dir at the named snapshot by writing the
// CURRENT file through a temp file and rename.
func WriteCurrent(dir, name string) error {
	if name == "" || strings.ContainsAny(name, "/\\\n") {
		return fmt.Errorf("store: invalid snapshot name %q", name)
	}
	tmp, err := os.CreateTemp(dir, CurrentFile+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}()

	if _, err := tmp.WriteString(name + "\n"); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpName, filepath.Join(dir, CurrentFile)); err != nil {
		return err
	}

	// Best-effort directory sync so the rename survives a crash.
	if d, err := os.Open(dir); err == nil {
		_ = d.Sync()
		_ = d.Close()
	}
	tmpName = ""
	return nil
}
