package codec

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type sample struct {
	Name  string    `json:"name"`
	Count int       `json:"count"`
	Vals  []float32 `json:"vals"`
}

func TestByName(t *testing.T) {
	for _, name := range []string{"json", "go-json"} {
		c, ok := ByName(name)
		require.True(t, ok)
		require.Equal(t, name, c.Name())
	}

	_, ok := ByName("msgpack")
	require.False(t, ok)
}

func TestCodecsAgree(t *testing.T) {
	in := sample{Name: "brain_os_docs", Count: 3, Vals: []float32{0.5, 0.25}}

	stdlib, err := JSON{}.Marshal(in)
	require.NoError(t, err)
	fast, err := GoJSON{}.Marshal(in)
	require.NoError(t, err)
	require.JSONEq(t, string(stdlib), string(fast))

	var out sample
	require.NoError(t, JSON{}.Unmarshal(fast, &out))
	require.Equal(t, in, out)

	var out2 sample
	require.NoError(t, GoJSON{}.Unmarshal(stdlib, &out2))
	require.Equal(t, in, out2)
}
