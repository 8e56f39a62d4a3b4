// Package cache provides the LRU block cache used by the caching
// bridge-store wrapper.
//
// Cached blocks are immutable: a block is a fixed-size slice of a named
// blob, and blobs in the bridge layout are never rewritten in place, so an
// entry only becomes garbage when its blob is deleted or overwritten
// wholesale. Invalidation is therefore by predicate over keys, not by TTL.
package cache
