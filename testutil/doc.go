// Package testutil provides deterministic fixtures for tests and
// benchmarks: a seeded random source, synthetic research-flavored corpus
// text, layout elements, and fully encoded chunks.
//
// All generators are driven by a seeded RNG, so a fixture is reproduced
// exactly by reusing the seed:
//
//	rng := testutil.NewRNG(42)
//	elements := rng.Elements(5, 4)             // parsed document
//	chunks := rng.Chunks("synthetic.txt", 100, 384) // ready to upsert
//	query := rng.UnitVector(384)               // dense query vector
//
// The package is intended for use in tests and benchmarks only.
package testutil
