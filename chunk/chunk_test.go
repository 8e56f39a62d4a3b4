package chunk

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brainos/retrieval/model"
)

func TestBuildIsIdempotent(t *testing.T) {
	b := New()
	elements := []model.Element{
		{Text: "Backpropagation computes gradients layer by layer.", PageNumber: 1, Kind: "NarrativeText"},
		{Text: "Region Revenue\nNorth 120\nSouth 80", PageNumber: 2, Kind: "Table"},
	}

	first, err := b.Build("report.pdf", elements)
	require.NoError(t, err)
	second, err := b.Build("report.pdf", elements)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	for _, c := range first {
		require.NoError(t, c.Validate())
	}
}

func TestBuildTwoPageDocumentWithTable(t *testing.T) {
	b := New()
	elements := []model.Element{
		{Text: "Revenue grew 14% year over year across both regions.", PageNumber: 1, Kind: "NarrativeText"},
		{Text: "Region Revenue\nNorth 120\nSouth 80", PageNumber: 2, Kind: "Table"},
	}

	chunks, err := b.Build("report.pdf", elements)
	require.NoError(t, err)
	require.Len(t, chunks, 2)

	assert.Equal(t, model.ElementText, chunks[0].ElementType)
	assert.Equal(t, 1, chunks[0].PageNumber)

	table := chunks[1]
	assert.Equal(t, model.ElementTable, table.ElementType)
	assert.Equal(t, 2, table.PageNumber)
	assert.True(t, strings.HasPrefix(table.Text, model.TableMarker), "table text %q", table.Text)
}

func TestBuildDropsShortElements(t *testing.T) {
	b := New()
	elements := []model.Element{
		{Text: "   tiny   ", PageNumber: 1, Kind: "NarrativeText"},
		{Text: "This one is long enough to keep.", PageNumber: 1, Kind: "NarrativeText"},
	}

	chunks, err := b.Build("doc.pdf", elements)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "This one is long enough to keep.", chunks[0].Text)
}

func TestBuildMergesAdjacentText(t *testing.T) {
	b := New()
	elements := []model.Element{
		{Text: "First paragraph of the introduction.", PageNumber: 1, Kind: "NarrativeText"},
		{Text: "Second paragraph, still introducing.", PageNumber: 1, Kind: "NarrativeText"},
		{Text: "A new page starts a new chunk here.", PageNumber: 2, Kind: "NarrativeText"},
	}

	chunks, err := b.Build("doc.pdf", elements)
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.Equal(t, "First paragraph of the introduction.\n\nSecond paragraph, still introducing.", chunks[0].Text)
	assert.Equal(t, 2, chunks[1].PageNumber)
}

func TestBuildMergeRespectsMaxChars(t *testing.T) {
	b := New(WithMaxChars(50))
	elements := []model.Element{
		{Text: "Exactly twenty chars", PageNumber: 1, Kind: "NarrativeText"},
		{Text: "Another twenty chars", PageNumber: 1, Kind: "NarrativeText"},
		{Text: "This third one would push past fifty.", PageNumber: 1, Kind: "NarrativeText"},
	}

	chunks, err := b.Build("doc.pdf", elements)
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.Equal(t, "Exactly twenty chars\n\nAnother twenty chars", chunks[0].Text)
	assert.Equal(t, "This third one would push past fifty.", chunks[1].Text)
}

func TestBuildMergeNeverCrossesTypeBoundary(t *testing.T) {
	b := New()
	elements := []model.Element{
		{Text: "Narrative before the heading text.", PageNumber: 1, Kind: "NarrativeText"},
		{Text: "Section Two Heading", PageNumber: 1, Kind: "Title"},
		{Text: "Narrative after the heading text.", PageNumber: 1, Kind: "NarrativeText"},
	}

	chunks, err := b.Build("doc.pdf", elements)
	require.NoError(t, err)
	require.Len(t, chunks, 3)
	assert.Equal(t, model.ElementTitle, chunks[1].ElementType)
}

func TestBuildSkipsMalformedElements(t *testing.T) {
	b := New()
	elements := []model.Element{
		{Text: "Element without a usable page number.", PageNumber: 0, Kind: "NarrativeText"},
		{Text: "Second page content comes first here.", PageNumber: 2, Kind: "NarrativeText"},
		{Text: "Page number going backwards is malformed.", PageNumber: 1, Kind: "NarrativeText"},
	}

	chunks, err := b.Build("doc.pdf", elements)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, 2, chunks[0].PageNumber)
}

func TestBuildRejectsEmptySource(t *testing.T) {
	b := New()

	_, err := b.Build("  ", []model.Element{{Text: "some text", PageNumber: 1, Kind: "NarrativeText"}})
	assert.Error(t, err)
}

func TestChunkIDDeterministic(t *testing.T) {
	a := ChunkID("doc.pdf", 1, 0, "hello world")
	b := ChunkID("doc.pdf", 1, 0, "hello world")
	assert.Equal(t, a, b)

	assert.NotEqual(t, a, ChunkID("doc.pdf", 1, 1, "hello world"), "ordinal is part of the key")
	assert.NotEqual(t, a, ChunkID("doc.pdf", 2, 0, "hello world"), "page is part of the key")
	assert.NotEqual(t, a, ChunkID("other.pdf", 1, 0, "hello world"), "source is part of the key")
	assert.NotEqual(t, a, ChunkID("doc.pdf", 1, 0, "hello worlds"), "text is part of the key")
}
