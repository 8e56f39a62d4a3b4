// Package blobstore provides the durable bridge store that carries snapshot
// archives, manifests, and the Latest Pointer between the writer and its
// disconnected readers.
//
// BlobStore is a keyed blob interface under a fixed prefix; implementations
// must be safe for concurrent use. Archives and manifests are immutable once
// written. The Latest Pointer is the single mutable record of the layout and
// goes through PointerStore, so backends with stronger primitives (DynamoDB
// conditional writes) can guard it while plain backends fall back to
// last-writer-wins puts.
//
// # Built-in Implementations
//
//   - LocalStore: local filesystem, atomic rename publishes, mmap reads
//   - MemoryStore: in-memory, for tests
//   - CachingStore: wrapper adding block-level read caching over slow backends
//   - Faulty: wrapper injecting transfer failures, for replication tests
//   - minio.Store: MinIO and S3-compatible object storage
//   - s3.Store: Amazon S3 with range reads and multipart uploads
//   - s3.DDBPointerStore: Latest Pointer guarded by DynamoDB conditional writes
//
// # Custom Implementations
//
// Implement BlobStore to support other backends:
//
//	type BlobStore interface {
//	    Open(ctx, name) (Blob, error)           // open for reading
//	    Create(ctx, name) (WritableBlob, error) // create for streaming writes
//	    Put(ctx, name, data) error              // atomic small write
//	    Delete(ctx, name) error
//	    List(ctx, prefix) ([]string, error)
//	}
package blobstore
