package cache

import "context"

// Key identifies one cached block of a named blob. Block is the block index,
// not a byte offset; the wrapper owns the block size.
type Key struct {
	Name  string
	Block uint64
}

// BlockCache is a byte-oriented cache for immutable blocks.
// Returned slices must be treated as read-only.
type BlockCache interface {
	// Get returns a cached block. ok=false if missing.
	Get(ctx context.Context, key Key) (b []byte, ok bool)
	// Set caches a block. The caller must treat b as immutable afterwards.
	Set(ctx context.Context, key Key, b []byte)
	// Invalidate removes entries matching the predicate.
	Invalidate(predicate func(key Key) bool)
	// Stats returns hit/miss counters.
	Stats() (hits, misses int64)
}
