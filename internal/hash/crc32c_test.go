package hash

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCRC32C(t *testing.T) {
	data := []byte("SOURCE: report.pdf | PAGE: 2")

	oneShot := CRC32C(data)

	h := NewCRC32C()
	_, err := h.Write(data[:10])
	require.NoError(t, err)
	_, err = h.Write(data[10:])
	require.NoError(t, err)
	require.Equal(t, oneShot, h.Sum32(), "streaming and one-shot must agree")

	fromReader, err := CRC32CReader(bytes.NewReader(data))
	require.NoError(t, err)
	require.Equal(t, oneShot, fromReader)

	require.NotEqual(t, oneShot, CRC32C(data[:len(data)-1]), "truncation must change the checksum")
}
