// Package pdf extracts layout elements from the text layer of PDF
// documents. The parser emits one narrative element per page so downstream
// chunking keeps true page provenance. Scanned pages without a text layer
// are skipped; the package does no OCR.
package pdf

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/brainos/retrieval/layout"
	"github.com/brainos/retrieval/model"
)

// Parser extracts PDF text page by page.
type Parser struct{}

// New creates a PDF parser.
func New() *Parser {
	return &Parser{}
}

// Parse buffers the document and extracts its text layer. Page numbers
// follow the PDF page tree and are 1-based.
func (*Parser) Parse(ctx context.Context, name string, r io.Reader) (elements []model.Element, err error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("pdf: read %s: %w", name, err)
	}

	// The extractor panics on some malformed documents.
	defer func() {
		if rec := recover(); rec != nil {
			elements, err = nil, fmt.Errorf("pdf: parse %s: %v", name, rec)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("pdf: parse %s: %w", name, err)
	}

	for pageNo := 1; pageNo <= reader.NumPage(); pageNo++ {
		page := reader.Page(pageNo)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("pdf: parse %s page %d: %w", name, pageNo, err)
		}
		if text = strings.TrimSpace(text); text == "" {
			continue
		}
		elements = append(elements, model.Element{
			Text:       text,
			PageNumber: pageNo,
			Kind:       "NarrativeText",
		})
	}
	return elements, nil
}

var _ layout.Parser = (*Parser)(nil)
