package model

import (
	"fmt"
	"strings"

	"github.com/brainos/retrieval/distance"
)

// Modifier selects the store-side weighting applied to sparse term
// frequencies at query time. The encoder always emits raw term frequency;
// the store owns the corpus statistics a modifier needs.
type Modifier uint8

const (
	ModifierNone Modifier = iota
	ModifierIDF
)

// String returns the canonical name of the modifier.
func (m Modifier) String() string {
	switch m {
	case ModifierNone:
		return "none"
	case ModifierIDF:
		return "idf"
	default:
		return fmt.Sprintf("Unknown(%d)", uint8(m))
	}
}

// MarshalText encodes m as its canonical name.
func (m Modifier) MarshalText() ([]byte, error) {
	if m > ModifierIDF {
		return nil, fmt.Errorf("model: invalid modifier %d", uint8(m))
	}
	return []byte(m.String()), nil
}

// UnmarshalText decodes a canonical modifier name.
func (m *Modifier) UnmarshalText(text []byte) error {
	switch strings.ToLower(string(text)) {
	case "none", "":
		*m = ModifierNone
	case "idf":
		*m = ModifierIDF
	default:
		return fmt.Errorf("model: unknown modifier %q", string(text))
	}
	return nil
}

// Schema is the fixed vector configuration of a collection, established once
// at creation and never mutated. Re-creation with a different schema is a
// consistency error, not a migration.
type Schema struct {
	DenseDimension int             `json:"dense_dimension"`
	Distance       distance.Metric `json:"distance"`
	Modifier       Modifier        `json:"modifier"`
}

// DefaultSchema returns the standard document-research schema: cosine
// distance over dim-dimensional dense vectors, IDF-modified sparse weights.
func DefaultSchema(dim int) Schema {
	return Schema{
		DenseDimension: dim,
		Distance:       distance.MetricCosine,
		Modifier:       ModifierIDF,
	}
}

// Validate checks that the schema is usable for collection creation.
func (s Schema) Validate() error {
	if s.DenseDimension < 1 {
		return fmt.Errorf("model: schema dense dimension %d is invalid", s.DenseDimension)
	}
	if _, err := distance.Provider(s.Distance); err != nil {
		return fmt.Errorf("model: schema distance: %w", err)
	}
	if s.Modifier > ModifierIDF {
		return fmt.Errorf("model: schema modifier %d is invalid", uint8(s.Modifier))
	}
	return nil
}

// Equal reports whether two schemas are interchangeable.
func (s Schema) Equal(o Schema) bool {
	return s.DenseDimension == o.DenseDimension && s.Distance == o.Distance && s.Modifier == o.Modifier
}
