package codec

import (
	"encoding/json"
)

// JSON is the standard-library JSON codec. It is the most portable option;
// archives written with it decode anywhere without extra dependencies.
type JSON struct{}

// Marshal encodes the value to JSON.
func (JSON) Marshal(v any) ([]byte, error) { return json.Marshal(v) }

// Unmarshal decodes the JSON data into v.
func (JSON) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

// Name returns the unique name of the codec ("json").
func (JSON) Name() string { return "json" }

// Default is the codec used for newly written artifacts. Existing artifacts
// are self-describing and are opened by selecting the codec by name, so
// changing the default never breaks old data.
var Default Codec = GoJSON{}
