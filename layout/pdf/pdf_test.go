package pdf

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildPDF assembles a minimal uncompressed PDF with one text run per page.
// Object offsets in the cross-reference table are computed while writing, so
// the fixture is valid for any page content without parentheses.
func buildPDF(t *testing.T, pages ...string) []byte {
	t.Helper()

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")

	offsets := make(map[int]int)
	writeObj := func(num int, body string) {
		offsets[num] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", num, body)
	}

	kids := make([]string, len(pages))
	for i := range pages {
		kids[i] = fmt.Sprintf("%d 0 R", 4+2*i)
	}

	writeObj(1, "<< /Type /Catalog /Pages 2 0 R >>")
	writeObj(2, fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>",
		strings.Join(kids, " "), len(pages)))
	writeObj(3, "<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>")
	for i, text := range pages {
		writeObj(4+2*i, fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] "+
			"/Resources << /Font << /F1 3 0 R >> >> /Contents %d 0 R >>", 5+2*i))
		stream := fmt.Sprintf("BT /F1 12 Tf 72 720 Td (%s) Tj ET", text)
		writeObj(5+2*i, fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(stream), stream))
	}

	count := 4 + 2*len(pages)
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", count)
	buf.WriteString("0000000000 65535 f \n")
	for num := 1; num < count; num++ {
		fmt.Fprintf(&buf, "%010d 00000 n \n", offsets[num])
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", count, xref)

	return buf.Bytes()
}

func TestParsePages(t *testing.T) {
	doc := buildPDF(t,
		"Revenue grew twelve percent in the fourth quarter.",
		"Margins held steady across both regions.",
	)

	p := New()
	elements, err := p.Parse(context.Background(), "report.pdf", bytes.NewReader(doc))
	require.NoError(t, err)
	require.Len(t, elements, 2)

	assert.Equal(t, "Revenue grew twelve percent in the fourth quarter.", elements[0].Text)
	assert.Equal(t, 1, elements[0].PageNumber)
	assert.Equal(t, "NarrativeText", elements[0].Kind)

	assert.Equal(t, "Margins held steady across both regions.", elements[1].Text)
	assert.Equal(t, 2, elements[1].PageNumber)
}

func TestParseSkipsEmptyPages(t *testing.T) {
	doc := buildPDF(t, "Only the first page carries text.", " ")

	p := New()
	elements, err := p.Parse(context.Background(), "sparse.pdf", bytes.NewReader(doc))
	require.NoError(t, err)
	require.Len(t, elements, 1)
	assert.Equal(t, 1, elements[0].PageNumber)
}

func TestParseRejectsNonPDF(t *testing.T) {
	p := New()

	_, err := p.Parse(context.Background(), "notes.pdf", strings.NewReader("plain text, not a pdf"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "notes.pdf")
}

func TestParseCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := New()
	_, err := p.Parse(ctx, "doc.pdf", bytes.NewReader(buildPDF(t, "text")))
	assert.ErrorIs(t, err, context.Canceled)
}
