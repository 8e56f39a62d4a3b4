package store

import "errors"

var (
	// ErrCollectionNotFound is returned when an operation names a collection
	// that was never created. It is distinguishable from an empty result.
	ErrCollectionNotFound = errors.New("store: collection not found")

	// ErrSchemaMismatch is returned when a collection is re-created with a
	// different schema, or when a chunk or query vector disagrees with the
	// collection's fixed dense dimension. Schemas are never migrated.
	ErrSchemaMismatch = errors.New("store: collection schema mismatch")

	// ErrReadOnly is returned by every mutating operation on a replica
	// store. Replicas change only through Reload.
	ErrReadOnly = errors.New("store: store is read-only")

	// ErrNotEncoded rejects a chunk that is missing its dense or sparse
	// vector. The whole batch is refused so no reader ever observes a
	// half-encoded chunk.
	ErrNotEncoded = errors.New("store: chunk is not fully encoded")

	// ErrInvalidArchive is returned when a snapshot archive fails structural
	// validation: wrong magic, unsupported version, unknown codec or
	// compression, or rows that violate collection invariants.
	ErrInvalidArchive = errors.New("store: invalid archive")
)
