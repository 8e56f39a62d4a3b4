package distance

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDot(t *testing.T) {
	tests := []struct {
		name     string
		a, b     []float32
		expected float32
	}{
		{"Simple", []float32{1, 2, 3}, []float32{4, 5, 6}, 32},
		{"Zero", []float32{0, 0, 0}, []float32{0, 0, 0}, 0},
		{"Mixed", []float32{1, -1, 2}, []float32{1, 1, -2}, -4},
		{"Empty", []float32{}, []float32{}, 0},
		{"Single", []float32{2}, []float32{3}, 6},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, Dot(tt.a, tt.b), 1e-5)
		})
	}
}

func TestSquaredL2(t *testing.T) {
	tests := []struct {
		name     string
		a, b     []float32
		expected float32
	}{
		{"Simple", []float32{1, 2, 3}, []float32{4, 5, 6}, 27},
		{"Identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 0},
		{"Mixed", []float32{1, -1}, []float32{-1, 1}, 8},
		{"Empty", []float32{}, []float32{}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, SquaredL2(tt.a, tt.b), 1e-5)
		})
	}
}

func TestNormalizeL2(t *testing.T) {
	t.Run("InPlace", func(t *testing.T) {
		v := []float32{3, 4}
		require.True(t, NormalizeL2InPlace(v))
		assert.InDelta(t, float32(0.6), v[0], 1e-5)
		assert.InDelta(t, float32(0.8), v[1], 1e-5)
		assert.InDelta(t, float32(1.0), float32(math.Sqrt(float64(v[0]*v[0]+v[1]*v[1]))), 1e-5)

		assert.False(t, NormalizeL2InPlace([]float32{0, 0}))
		assert.False(t, NormalizeL2InPlace([]float32{}))
	})

	t.Run("Copy", func(t *testing.T) {
		v := []float32{1, 0}
		dst, ok := NormalizeL2Copy(v)
		require.True(t, ok)
		assert.Equal(t, float32(1), dst[0])
		assert.NotSame(t, &v[0], &dst[0])

		dst, ok = NormalizeL2Copy([]float32{0, 0})
		assert.False(t, ok)
		assert.Nil(t, dst)
	})
}

func TestMetric(t *testing.T) {
	t.Run("String", func(t *testing.T) {
		assert.Equal(t, "Cosine", MetricCosine.String())
		assert.Equal(t, "Dot", MetricDot.String())
		assert.Equal(t, "L2", MetricL2.String())
		assert.Equal(t, "Unknown(99)", Metric(99).String())
	})

	t.Run("Provider", func(t *testing.T) {
		f, err := Provider(MetricL2)
		require.NoError(t, err)
		assert.InDelta(t, float32(27), f([]float32{1, 2, 3}, []float32{4, 5, 6}), 1e-5)

		f, err = Provider(MetricCosine)
		require.NoError(t, err)
		a, _ := NormalizeL2Copy([]float32{3, 4})
		assert.InDelta(t, float32(1), f(a, a), 1e-5)

		_, err = Provider(Metric(99))
		assert.Error(t, err)
	})

	t.Run("LowerIsBetter", func(t *testing.T) {
		assert.False(t, MetricCosine.LowerIsBetter())
		assert.False(t, MetricDot.LowerIsBetter())
		assert.True(t, MetricL2.LowerIsBetter())
	})

	t.Run("TextRoundtrip", func(t *testing.T) {
		for _, m := range []Metric{MetricCosine, MetricDot, MetricL2} {
			data, err := m.MarshalText()
			require.NoError(t, err)

			var back Metric
			require.NoError(t, back.UnmarshalText(data))
			assert.Equal(t, m, back)
		}

		var m Metric
		assert.Error(t, m.UnmarshalText([]byte("Manhattan")))
	})
}
