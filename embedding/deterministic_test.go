package embedding

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeterministicEmbedIsStable(t *testing.T) {
	ctx := context.Background()

	a := NewDeterministic(0)
	b := NewDeterministic(0)

	v1, err := a.Embed(ctx, "the quick brown fox")
	require.NoError(t, err)
	v2, err := a.Embed(ctx, "the quick brown fox")
	require.NoError(t, err)
	v3, err := b.Embed(ctx, "the quick brown fox")
	require.NoError(t, err)

	assert.Equal(t, v1, v2, "same instance must repeat itself")
	assert.Equal(t, v1, v3, "independent instances must agree")
}

func TestDeterministicEmbedUnitNorm(t *testing.T) {
	ctx := context.Background()
	emb := NewDeterministic(128)

	for _, text := range []string{"a", "hello world", "Quarterly revenue grew 14% year over year."} {
		vec, err := emb.Embed(ctx, text)
		require.NoError(t, err)
		require.Len(t, vec, 128)

		var norm float64
		for _, v := range vec {
			norm += float64(v) * float64(v)
		}
		assert.InDelta(t, 1.0, norm, 1e-3, "text %q", text)
	}
}

func TestDeterministicEmbedDistinctTexts(t *testing.T) {
	ctx := context.Background()
	emb := NewDeterministic(0)

	v1, err := emb.Embed(ctx, "alpha")
	require.NoError(t, err)
	v2, err := emb.Embed(ctx, "beta")
	require.NoError(t, err)

	assert.NotEqual(t, v1, v2)
}

func TestDeterministicEmbedEmpty(t *testing.T) {
	emb := NewDeterministic(0)

	_, err := emb.Embed(context.Background(), "")
	assert.ErrorIs(t, err, ErrEmptyInput)

	_, err = emb.EmbedBatch(context.Background(), []string{"ok", ""})
	assert.ErrorIs(t, err, ErrEmptyInput)
}

func TestDeterministicEmbedBatch(t *testing.T) {
	ctx := context.Background()
	emb := NewDeterministic(64)

	texts := []string{"one", "two", "three"}
	batch, err := emb.EmbedBatch(ctx, texts)
	require.NoError(t, err)
	require.Len(t, batch, len(texts))

	for i, text := range texts {
		single, err := emb.Embed(ctx, text)
		require.NoError(t, err)
		assert.Equal(t, single, batch[i], "batch entry %d", i)
	}
}

func TestDeterministicDimensions(t *testing.T) {
	assert.Equal(t, DefaultDeterministicDimensions, NewDeterministic(0).Dimensions())
	assert.Equal(t, 768, NewDeterministic(768).Dimensions())
	assert.Equal(t, "deterministic", NewDeterministic(0).ModelName())
}

func TestDeterministicPing(t *testing.T) {
	emb := NewDeterministic(0)
	require.NoError(t, emb.Ping(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, emb.Ping(ctx))

	require.NoError(t, emb.Close())
}
