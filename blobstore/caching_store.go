package blobstore

import (
	"context"
	"errors"
	"io"

	"github.com/brainos/retrieval/internal/cache"
	"golang.org/x/sync/errgroup"
)

// DefaultBlockSize is the cache block granularity used when none is given.
const DefaultBlockSize = 64 * 1024

// CachingStore wraps a BlobStore with block-level read caching. Snapshot
// artifacts are immutable once published, so cached blocks never go stale;
// Put and Delete invalidate cached blocks so a reused name never serves old
// bytes.
type CachingStore struct {
	inner     BlobStore
	cache     cache.BlockCache
	blockSize int64
}

// NewCachingStore wraps inner with a block cache. blockSize defaults to
// DefaultBlockSize if <= 0.
func NewCachingStore(inner BlobStore, c cache.BlockCache, blockSize int64) *CachingStore {
	if blockSize <= 0 {
		blockSize = DefaultBlockSize
	}
	return &CachingStore{
		inner:     inner,
		cache:     c,
		blockSize: blockSize,
	}
}

// Open opens a blob whose reads go through the block cache.
func (s *CachingStore) Open(ctx context.Context, name string) (Blob, error) {
	b, err := s.inner.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	return &cachingBlob{
		inner:     b,
		cache:     s.cache,
		name:      name,
		blockSize: s.blockSize,
	}, nil
}

// Create passes through; writes are not cached.
func (s *CachingStore) Create(ctx context.Context, name string) (WritableBlob, error) {
	s.invalidate(name)
	return s.inner.Create(ctx, name)
}

// Put invalidates any cached blocks for the name, then writes through.
func (s *CachingStore) Put(ctx context.Context, name string, data []byte) error {
	s.invalidate(name)
	return s.inner.Put(ctx, name, data)
}

// Delete invalidates any cached blocks for the name, then deletes.
func (s *CachingStore) Delete(ctx context.Context, name string) error {
	s.invalidate(name)
	return s.inner.Delete(ctx, name)
}

// List passes through to the inner store.
func (s *CachingStore) List(ctx context.Context, prefix string) ([]string, error) {
	return s.inner.List(ctx, prefix)
}

func (s *CachingStore) invalidate(name string) {
	s.cache.Invalidate(func(key cache.Key) bool {
		return key.Name == name
	})
}

// cachingBlob serves ReadAt from cached blocks, fetching missing runs from
// the inner blob in coalesced requests.
type cachingBlob struct {
	inner     Blob
	cache     cache.BlockCache
	name      string
	blockSize int64
}

func (b *cachingBlob) Close() error {
	return b.inner.Close()
}

func (b *cachingBlob) Size() int64 {
	return b.inner.Size()
}

func (b *cachingBlob) ReadAt(ctx context.Context, p []byte, off int64) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	startBlock := off / b.blockSize
	endBlock := (off + int64(len(p)) - 1) / b.blockSize

	if err := b.fillCache(ctx, startBlock, endBlock); err != nil {
		return 0, err
	}

	total := 0
	for blk := startBlock; blk <= endBlock; blk++ {
		blkStart := blk * b.blockSize

		// Intersect [blkStart, blkStart+blockSize) with [off, off+len(p)).
		lo := max(blkStart, off)
		hi := min(blkStart+b.blockSize, off+int64(len(p)))
		if hi <= lo {
			continue
		}

		data, err := b.fetchBlock(ctx, blk)
		if err != nil {
			return total, err
		}

		srcOff := lo - blkStart
		if srcOff >= int64(len(data)) {
			// Past EOF within the last block.
			break
		}
		n := copy(p[lo-off:hi-off], data[srcOff:])
		total += n
	}

	if total < len(p) {
		return total, io.EOF
	}
	return total, nil
}

// fillCache loads the missing blocks in [startBlock, endBlock] into the
// cache, coalescing contiguous runs into single backend reads.
func (b *cachingBlob) fillCache(ctx context.Context, startBlock, endBlock int64) error {
	type run struct {
		start, count int64
	}
	var missing []run

	runStart, runCount := int64(-1), int64(0)
	for blk := startBlock; blk <= endBlock; blk++ {
		key := cache.Key{Name: b.name, Block: uint64(blk)}
		if _, ok := b.cache.Get(ctx, key); ok {
			if runStart != -1 {
				missing = append(missing, run{runStart, runCount})
				runStart, runCount = -1, 0
			}
			continue
		}
		if runStart == -1 {
			runStart = blk
		}
		runCount++
	}
	if runStart != -1 {
		missing = append(missing, run{runStart, runCount})
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(16)

	for _, r := range missing {
		g.Go(func() error {
			byteStart := r.start * b.blockSize
			byteSize := r.count * b.blockSize

			size := b.inner.Size()
			if byteStart >= size {
				return nil
			}
			if byteStart+byteSize > size {
				byteSize = size - byteStart
			}

			buf := make([]byte, byteSize)
			n, err := b.inner.ReadAt(gctx, buf, byteStart)
			if err != nil && !errors.Is(err, io.EOF) {
				return err
			}
			valid := buf[:n]

			for i := int64(0); i < r.count; i++ {
				lo := i * b.blockSize
				if lo >= int64(len(valid)) {
					break
				}
				hi := min(lo+b.blockSize, int64(len(valid)))

				// Copy so the cache never pins the coalesced buffer.
				block := make([]byte, hi-lo)
				copy(block, valid[lo:hi])

				b.cache.Set(gctx, cache.Key{Name: b.name, Block: uint64(r.start + i)}, block)
			}
			return nil
		})
	}
	return g.Wait()
}

// fetchBlock returns one block, from cache when present.
func (b *cachingBlob) fetchBlock(ctx context.Context, blk int64) ([]byte, error) {
	key := cache.Key{Name: b.name, Block: uint64(blk)}
	if data, ok := b.cache.Get(ctx, key); ok {
		return data, nil
	}

	buf := make([]byte, b.blockSize)
	n, err := b.inner.ReadAt(ctx, buf, blk*b.blockSize)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	valid := buf[:n]
	if n > 0 {
		b.cache.Set(ctx, key, valid)
	}
	return valid, nil
}

// ReadRange reads through the block cache via ReadAt.
func (b *cachingBlob) ReadRange(ctx context.Context, off, length int64) (io.ReadCloser, error) {
	if size := b.Size(); off+length > size {
		length = max(size-off, 0)
	}
	return io.NopCloser(&cachedSectionReader{blob: b, ctx: ctx, off: off, limit: off + length}), nil
}

// cachedSectionReader adapts cachingBlob.ReadAt to io.Reader over a range.
type cachedSectionReader struct {
	blob  *cachingBlob
	ctx   context.Context
	off   int64
	limit int64
}

func (r *cachedSectionReader) Read(p []byte) (int, error) {
	if r.off >= r.limit {
		return 0, io.EOF
	}
	if remaining := r.limit - r.off; int64(len(p)) > remaining {
		p = p[:remaining]
	}
	n, err := r.blob.ReadAt(r.ctx, p, r.off)
	r.off += int64(n)
	if errors.Is(err, io.EOF) && r.off >= r.limit {
		err = nil
	}
	return n, err
}
