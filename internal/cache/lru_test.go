package cache

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLRUGetSet(t *testing.T) {
	ctx := context.Background()
	c := NewLRU(1024)

	key := Key{Name: "snapshots/a/archive", Block: 0}
	_, ok := c.Get(ctx, key)
	require.False(t, ok)

	c.Set(ctx, key, []byte("hello"))
	got, ok := c.Get(ctx, key)
	require.True(t, ok)
	require.Equal(t, []byte("hello"), got)

	hits, misses := c.Stats()
	require.Equal(t, int64(1), hits)
	require.Equal(t, int64(1), misses)
}

func TestLRUEvictsLeastRecentlyUsed(t *testing.T) {
	ctx := context.Background()
	c := NewLRU(32)

	a := Key{Name: "blob", Block: 0}
	b := Key{Name: "blob", Block: 1}
	d := Key{Name: "blob", Block: 2}

	c.Set(ctx, a, make([]byte, 16))
	c.Set(ctx, b, make([]byte, 16))

	// Touch a so b becomes the eviction victim.
	_, ok := c.Get(ctx, a)
	require.True(t, ok)

	c.Set(ctx, d, make([]byte, 16))

	_, ok = c.Get(ctx, b)
	require.False(t, ok)
	_, ok = c.Get(ctx, a)
	require.True(t, ok)
	require.LessOrEqual(t, c.Size(), int64(32))
}

func TestLRURejectsOversized(t *testing.T) {
	ctx := context.Background()
	c := NewLRU(8)

	c.Set(ctx, Key{Name: "big"}, make([]byte, 64))
	_, ok := c.Get(ctx, Key{Name: "big"})
	require.False(t, ok)
	require.Zero(t, c.Size())
}

func TestLRUInvalidateByName(t *testing.T) {
	ctx := context.Background()
	c := NewLRU(1024)

	c.Set(ctx, Key{Name: "keep", Block: 0}, []byte("x"))
	c.Set(ctx, Key{Name: "drop", Block: 0}, []byte("y"))
	c.Set(ctx, Key{Name: "drop", Block: 1}, []byte("z"))

	c.Invalidate(func(key Key) bool { return key.Name == "drop" })

	_, ok := c.Get(ctx, Key{Name: "keep", Block: 0})
	require.True(t, ok)
	_, ok = c.Get(ctx, Key{Name: "drop", Block: 0})
	require.False(t, ok)
	_, ok = c.Get(ctx, Key{Name: "drop", Block: 1})
	require.False(t, ok)
}
