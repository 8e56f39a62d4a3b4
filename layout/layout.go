// Package layout defines the document-layout capability that turns a raw
// document into ordered text elements with page and kind metadata.
//
// Real deployments plug in an external layout/OCR engine behind the Parser
// interface. The package ships PlainText, a deterministic parser for plain
// text and lightweight markup, used by tests and offline runs.
package layout

import (
	"context"
	"io"

	"github.com/brainos/retrieval/model"
)

// Parser extracts ordered layout elements from a document. Elements carry
// the engine's own kind vocabulary (NarrativeText, Title, Table, ListItem,
// ...); the chunk builder folds kinds onto the closed element-type set.
type Parser interface {
	Parse(ctx context.Context, name string, r io.Reader) ([]model.Element, error)
}
