// Package codec centralizes the serialization used by snapshot manifests,
// pointer records, and archive rows.
//
// Codec selection is a compatibility boundary: persisted artifacts record
// the codec name in their header, and readers select the codec by that name
// instead of assuming one. Changing the default only affects newly written
// artifacts.
package codec

import "fmt"

// Codec encodes/decodes values.
// Implementations must be safe for concurrent use.
type Codec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
	Name() string
}

// ByName returns a built-in codec by its stable name. Archive and manifest
// readers use this to honor whatever codec wrote the artifact.
func ByName(name string) (Codec, bool) {
	switch name {
	case "json":
		return JSON{}, true
	case "go-json":
		return GoJSON{}, true
	default:
		return nil, false
	}
}

// MustMarshal is a helper for tests and fixtures.
func MustMarshal(c Codec, v any) []byte {
	if c == nil {
		c = Default
	}
	b, err := c.Marshal(v)
	if err != nil {
		panic(fmt.Errorf("codec %s marshal failed: %w", c.Name(), err))
	}
	return b
}
