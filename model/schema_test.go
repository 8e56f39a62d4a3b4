package model

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/brainos/retrieval/distance"
)

func TestSchemaValidate(t *testing.T) {
	require.NoError(t, DefaultSchema(384).Validate())

	zero := Schema{}
	require.Error(t, zero.Validate())

	badDim := DefaultSchema(0)
	require.Error(t, badDim.Validate())

	badMetric := Schema{DenseDimension: 4, Distance: distance.Metric(9)}
	require.Error(t, badMetric.Validate())
}

func TestSchemaEqual(t *testing.T) {
	a := DefaultSchema(384)
	b := DefaultSchema(384)
	require.True(t, a.Equal(b))

	b.DenseDimension = 768
	require.False(t, a.Equal(b))

	c := DefaultSchema(384)
	c.Modifier = ModifierNone
	require.False(t, a.Equal(c))
}
