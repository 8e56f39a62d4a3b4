package retrieval

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/brainos/retrieval/blobstore"
	"github.com/brainos/retrieval/encode"
	"github.com/brainos/retrieval/ingest"
	"github.com/brainos/retrieval/query"
	"github.com/brainos/retrieval/snapshot"
	"github.com/brainos/retrieval/store"
)

// Sentinels from the subpackages, re-exported so callers can match errors
// with errors.Is without importing every layer.
var (
	// ErrEmptyQuery rejects an empty or whitespace-only query.
	ErrEmptyQuery = query.ErrEmptyQuery

	// ErrCollectionNotFound reports an unknown collection.
	ErrCollectionNotFound = store.ErrCollectionNotFound

	// ErrSchemaMismatch reports a chunk or collection that disagrees with
	// the configured schema.
	ErrSchemaMismatch = store.ErrSchemaMismatch

	// ErrReadOnly reports a write against a replica store.
	ErrReadOnly = store.ErrReadOnly

	// ErrDimensionMismatch reports an embedding vector of the wrong size.
	ErrDimensionMismatch = encode.ErrDimensionMismatch

	// ErrChecksumMismatch reports a snapshot whose content does not match
	// its manifest.
	ErrChecksumMismatch = snapshot.ErrChecksumMismatch

	// ErrClosed reports an operation on a closed Service.
	ErrClosed = ingest.ErrPipelineClosed
)

// errNoBridge rejects snapshot operations on a Service built without
// WithBridge.
var errNoBridge = errors.New("retrieval: no bridge configured")

// Kind classifies an operation error by how the caller should react.
type Kind uint8

const (
	// KindTransient marks an external failure that may clear on retry.
	KindTransient Kind = iota
	// KindInput marks invalid caller input. Retrying cannot help.
	KindInput
	// KindNotFound marks a missing collection, document, or pointer.
	KindNotFound
	// KindConsistency marks conflicting or corrupted state. The operation
	// failed and the previous good state keeps serving.
	KindConsistency
)

// String returns the kind label used in error strings and logs.
func (k Kind) String() string {
	switch k {
	case KindInput:
		return "input"
	case KindNotFound:
		return "not found"
	case KindConsistency:
		return "consistency"
	default:
		return "transient"
	}
}

// Error is the operation error returned by the facade. Op names the failed
// operation, Kind classifies it, and Err carries the cause for errors.Is
// and errors.As through Unwrap.
type Error struct {
	Op   string
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("retrieval: %s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// opError wraps err with the operation name and its classified kind. A nil
// err passes through.
func opError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Kind: classify(err), Err: err}
}

func classify(err error) Kind {
	switch {
	case errors.Is(err, ErrEmptyQuery),
		errors.Is(err, ErrDimensionMismatch),
		errors.Is(err, store.ErrNotEncoded),
		errors.Is(err, ErrClosed),
		errors.Is(err, errNoBridge):
		return KindInput
	case errors.Is(err, ErrCollectionNotFound),
		errors.Is(err, blobstore.ErrNotFound),
		errors.Is(err, fs.ErrNotExist):
		return KindNotFound
	case errors.Is(err, ErrSchemaMismatch),
		errors.Is(err, ErrChecksumMismatch),
		errors.Is(err, ErrReadOnly):
		return KindConsistency
	default:
		return KindTransient
	}
}
