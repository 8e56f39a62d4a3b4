package model

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// TableMarker is prepended to the text of every chunk built from a table
// element, so tabular content stays searchable and distinguishable at query
// and synthesis time.
const TableMarker = "Table data: "

// ElementType classifies the provenance of a chunk. The set is closed:
// layout engines emit a richer vocabulary, which ParseElementType folds onto
// these six values.
type ElementType uint8

const (
	ElementOther ElementType = iota
	ElementText
	ElementTitle
	ElementTable
	ElementListItem
	ElementFigure
)

// String returns the canonical name of the element type.
func (t ElementType) String() string {
	switch t {
	case ElementText:
		return "Text"
	case ElementTitle:
		return "Title"
	case ElementTable:
		return "Table"
	case ElementListItem:
		return "ListItem"
	case ElementFigure:
		return "Figure"
	case ElementOther:
		return "Other"
	default:
		return fmt.Sprintf("Unknown(%d)", uint8(t))
	}
}

// Valid reports whether t is a member of the closed set.
func (t ElementType) Valid() bool {
	return t <= ElementFigure
}

// MarshalText encodes t as its canonical name.
func (t ElementType) MarshalText() ([]byte, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("model: invalid element type %d", uint8(t))
	}
	return []byte(t.String()), nil
}

// UnmarshalText decodes a canonical element type name. Unknown names are
// rejected rather than folded, so archive corruption surfaces as an error.
func (t *ElementType) UnmarshalText(text []byte) error {
	switch strings.ToLower(string(text)) {
	case "text":
		*t = ElementText
	case "title":
		*t = ElementTitle
	case "table":
		*t = ElementTable
	case "listitem":
		*t = ElementListItem
	case "figure":
		*t = ElementFigure
	case "other":
		*t = ElementOther
	default:
		return fmt.Errorf("model: unknown element type %q", string(text))
	}
	return nil
}

// ParseElementType maps a layout engine's element kind onto the closed set.
// The vocabulary follows common layout/OCR engines (NarrativeText, Title,
// Table, ListItem, Image, ...); anything unrecognized becomes ElementOther.
func ParseElementType(kind string) ElementType {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "narrativetext", "text", "uncategorizedtext", "paragraph":
		return ElementText
	case "title", "header", "headline", "subheadline", "sectionheader":
		return ElementTitle
	case "table":
		return ElementTable
	case "listitem", "list", "bulletedtext":
		return ElementListItem
	case "image", "figure", "figurecaption", "picture":
		return ElementFigure
	default:
		return ElementOther
	}
}

// Element is a raw fragment produced by the external layout engine for one
// source document. Kind carries the engine's own vocabulary; the chunk
// builder folds it via ParseElementType.
type Element struct {
	Text       string `json:"text"`
	PageNumber int    `json:"page_number"`
	Kind       string `json:"kind"`
}

// SparseVector is a weighted term-frequency representation. Indices and
// Values are parallel slices; indices are unique and sorted ascending so two
// vectors over the same text compare byte-equal after encoding.
type SparseVector struct {
	Indices []uint32  `json:"indices"`
	Values  []float32 `json:"values"`
}

// Len returns the number of populated dimensions.
func (v SparseVector) Len() int { return len(v.Indices) }

// IsZero reports whether the vector has no populated dimensions.
func (v SparseVector) IsZero() bool { return len(v.Indices) == 0 }

// Validate checks the structural invariants: parallel slices, strictly
// ascending unique indices, positive weights.
func (v SparseVector) Validate() error {
	if len(v.Indices) != len(v.Values) {
		return fmt.Errorf("model: sparse vector indices/values length mismatch: %d != %d", len(v.Indices), len(v.Values))
	}
	for i := range v.Indices {
		if i > 0 && v.Indices[i] <= v.Indices[i-1] {
			return fmt.Errorf("model: sparse vector indices not strictly ascending at %d", i)
		}
		if v.Values[i] <= 0 {
			return fmt.Errorf("model: sparse vector weight at dimension %d is not positive", v.Indices[i])
		}
	}
	return nil
}

// Chunk is the unit of indexed content. ID is a deterministic function of
// (source, page, post-merge ordinal, text hash), so rebuilding the same
// document yields the same ids and re-upserting is a no-op.
type Chunk struct {
	ID          string       `json:"id"`
	Text        string       `json:"text"`
	Source      string       `json:"source"`
	PageNumber  int          `json:"page_number"`
	ElementType ElementType  `json:"element_type"`
	Dense       []float32    `json:"dense,omitempty"`
	Sparse      SparseVector `json:"sparse"`
}

// Validate checks the metadata invariants that must hold from the moment a
// chunk is built, before any vector is attached.
func (c *Chunk) Validate() error {
	switch {
	case c.ID == "":
		return errors.New("model: chunk id is empty")
	case strings.TrimSpace(c.Text) == "":
		return fmt.Errorf("model: chunk %s has empty text", c.ID)
	case c.Source == "":
		return fmt.Errorf("model: chunk %s has no source", c.ID)
	case c.PageNumber < 1:
		return fmt.Errorf("model: chunk %s has invalid page number %d", c.ID, c.PageNumber)
	case !c.ElementType.Valid():
		return fmt.Errorf("model: chunk %s has invalid element type %d", c.ID, uint8(c.ElementType))
	}
	return nil
}

// Encoded reports whether both vector representations are populated. Only
// encoded chunks may become visible to queries.
func (c *Chunk) Encoded() bool {
	return len(c.Dense) > 0 && !c.Sparse.IsZero()
}

// Clone returns a deep copy whose vector slices share no memory with c.
func (c *Chunk) Clone() Chunk {
	out := *c
	out.Dense = slices.Clone(c.Dense)
	out.Sparse = SparseVector{
		Indices: slices.Clone(c.Sparse.Indices),
		Values:  slices.Clone(c.Sparse.Values),
	}
	return out
}
