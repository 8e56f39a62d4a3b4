// Package distance provides the vector distance calculations used by the
// dense retrieval branch.
//
// # Supported Metrics
//
//   - MetricCosine: cosine similarity over unit-normalized vectors (default)
//   - MetricDot: dot product (inner product)
//   - MetricL2: squared Euclidean distance
//
// Cosine assumes unit-normalized inputs, which reduces it to a dot product;
// the store normalizes dense vectors at upsert and query time so the
// assumption holds everywhere by construction.
//
// # Usage
//
//	sim := distance.Dot(a, b)
//	normalized, ok := distance.NormalizeL2Copy(vec)
package distance
