package blobstore

import (
	"context"
	"io"
	"os"
)

// ErrNotFound is returned when a blob does not exist.
//
// Implementations should return an error that satisfies
// `errors.Is(err, ErrNotFound)`. The default maps to `os.ErrNotExist`.
var ErrNotFound = os.ErrNotExist

// BlobStore is the bridge-store abstraction for snapshot artifacts.
// Names use forward slashes regardless of platform.
type BlobStore interface {
	// Open opens an existing blob for reading.
	Open(ctx context.Context, name string) (Blob, error)
	// Create creates a blob for streaming writes. The blob becomes visible
	// only when Close returns nil.
	Create(ctx context.Context, name string) (WritableBlob, error)
	// Put writes a small blob atomically.
	Put(ctx context.Context, name string, data []byte) error
	// Delete removes a blob. Deleting an absent blob is not an error.
	Delete(ctx context.Context, name string) error
	// List returns all blob names under the prefix, sorted.
	List(ctx context.Context, prefix string) ([]string, error)
}

// Blob is a read-only handle to a stored blob.
type Blob interface {
	// ReadAt reads len(p) bytes starting at offset off.
	ReadAt(ctx context.Context, p []byte, off int64) (int, error)
	// ReadRange returns a reader over [off, off+length), clamped to the
	// blob size.
	ReadRange(ctx context.Context, off, length int64) (io.ReadCloser, error)
	// Size returns the size of the blob in bytes.
	Size() int64
	Close() error
}

// WritableBlob is a streaming write handle.
type WritableBlob interface {
	io.Writer
	// Sync flushes buffered data to durable storage where the backend
	// supports it.
	Sync() error
	// Close finalizes the blob. Data written before a failed Close must
	// never become visible under the blob's name, and a blob whose Write
	// or Sync failed must discard instead of publishing.
	Close() error
}

// PointerStore persists the Latest Pointer, the one mutable record in the
// bridge layout. Last-writer-wins is acceptable because only a single writer
// role exists; backends with conditional writes may additionally reject
// concurrent updates.
type PointerStore interface {
	// LoadPointer reads the named pointer record. Returns ErrNotFound if it
	// was never written.
	LoadPointer(ctx context.Context, name string) ([]byte, error)
	// SavePointer atomically overwrites the named pointer record.
	SavePointer(ctx context.Context, name string, data []byte) error
}

// KeyPointer adapts a BlobStore into a PointerStore by keeping the pointer
// as a regular blob. The backend's Put atomicity is the guarantee.
type KeyPointer struct {
	Store BlobStore
}

// LoadPointer reads the pointer blob.
func (k KeyPointer) LoadPointer(ctx context.Context, name string) ([]byte, error) {
	return ReadAll(ctx, k.Store, name)
}

// SavePointer overwrites the pointer blob.
func (k KeyPointer) SavePointer(ctx context.Context, name string, data []byte) error {
	return k.Store.Put(ctx, name, data)
}

// ReadAll reads the complete content of a named blob.
func ReadAll(ctx context.Context, s BlobStore, name string) ([]byte, error) {
	b, err := s.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	defer b.Close()

	if b.Size() == 0 {
		return nil, nil
	}
	rc, err := b.ReadRange(ctx, 0, b.Size())
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	return io.ReadAll(rc)
}

// Copy streams a whole blob into w and returns the number of bytes copied.
func Copy(ctx context.Context, w io.Writer, s BlobStore, name string) (int64, error) {
	b, err := s.Open(ctx, name)
	if err != nil {
		return 0, err
	}
	defer b.Close()

	if b.Size() == 0 {
		return 0, nil
	}
	rc, err := b.ReadRange(ctx, 0, b.Size())
	if err != nil {
		return 0, err
	}
	defer rc.Close()

	return io.Copy(w, rc)
}
