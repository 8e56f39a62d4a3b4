// Package model defines the core types shared across the retrieval pipeline.
//
// # Content Types
//
//   - Element: raw fragment emitted by the external layout engine
//   - Chunk: indexed unit of content with provenance metadata and vectors
//   - SparseVector: weighted term-frequency representation (parallel slices)
//   - ElementType: closed classification set for chunk provenance
//
// # Collection Types
//
//   - Schema: fixed vector configuration of a collection (dense dimension,
//     distance metric, sparse weighting modifier)
//
// # Query Types
//
//   - QueryRequest / QueryResponse: caller-facing request and answer shapes
//   - Citation: single provenance-tagged result entry
//
// A Chunk moves through three states: built (metadata only), encoded (both
// vectors populated), persisted (visible to queries). The store rejects any
// chunk that has not reached the encoded state, so a query never observes a
// half-encoded chunk.
package model
