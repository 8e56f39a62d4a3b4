package distance

import (
	"fmt"
	"math"
	"slices"
	"strings"
)

// Dot calculates the dot product of two vectors.
// Assumes vectors are the same length (caller's responsibility).
func Dot(a, b []float32) float32 {
	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

// SquaredL2 calculates the squared L2 (Euclidean) distance between two
// vectors. Assumes vectors are the same length (caller's responsibility).
func SquaredL2(a, b []float32) float32 {
	var sum float32
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}

// NormalizeL2InPlace L2-normalizes v in place.
// Returns false if v has zero L2 norm.
func NormalizeL2InPlace(v []float32) bool {
	if len(v) == 0 {
		return false
	}
	norm2 := Dot(v, v)
	if norm2 == 0 {
		return false
	}
	inv := 1 / float32(math.Sqrt(float64(norm2)))
	for i := range v {
		v[i] *= inv
	}
	return true
}

// NormalizeL2Copy returns a normalized copy of src.
// Returns false if src has zero L2 norm.
func NormalizeL2Copy(src []float32) ([]float32, bool) {
	dst := slices.Clone(src)
	if !NormalizeL2InPlace(dst) {
		return nil, false
	}
	return dst, true
}

// Metric represents the distance metric used for vector comparison.
type Metric int

const (
	MetricCosine Metric = iota
	MetricDot
	MetricL2
)

func (m Metric) String() string {
	switch m {
	case MetricCosine:
		return "Cosine"
	case MetricDot:
		return "Dot"
	case MetricL2:
		return "L2"
	default:
		return fmt.Sprintf("Unknown(%d)", int(m))
	}
}

// LowerIsBetter reports whether smaller raw values of the metric mean closer
// vectors. Cosine and dot are similarities; L2 is a distance.
func (m Metric) LowerIsBetter() bool {
	return m == MetricL2
}

// MarshalText encodes m as its canonical name, for manifests and schemas.
func (m Metric) MarshalText() ([]byte, error) {
	if m < MetricCosine || m > MetricL2 {
		return nil, fmt.Errorf("distance: invalid metric %d", int(m))
	}
	return []byte(m.String()), nil
}

// UnmarshalText decodes a canonical metric name.
func (m *Metric) UnmarshalText(text []byte) error {
	switch strings.ToLower(string(text)) {
	case "cosine", "":
		*m = MetricCosine
	case "dot":
		*m = MetricDot
	case "l2":
		*m = MetricL2
	default:
		return fmt.Errorf("distance: unknown metric %q", string(text))
	}
	return nil
}

// Func is a function type for distance calculation.
type Func func(a, b []float32) float32

// Provider returns the distance function for the given metric. Cosine
// assumes unit-normalized inputs, which reduces it to a dot product; the
// store normalizes dense vectors at upsert and query time.
func Provider(m Metric) (Func, error) {
	switch m {
	case MetricCosine, MetricDot:
		return Dot, nil
	case MetricL2:
		return SquaredL2, nil
	default:
		return nil, fmt.Errorf("distance: unsupported metric: %v", m)
	}
}
