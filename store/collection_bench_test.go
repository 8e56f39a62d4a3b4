package store

import (
	"context"
	"fmt"
	"testing"

	"github.com/brainos/retrieval/encode"
	"github.com/brainos/retrieval/model"
	"github.com/brainos/retrieval/testutil"
)

// benchCollection builds a writer store preloaded with n encoded chunks.
func benchCollection(b *testing.B, n, dim int) (*Store, *Collection) {
	b.Helper()
	rng := testutil.NewRNG(42)

	st := New()
	col, err := st.EnsureCollection("bench", model.DefaultSchema(dim))
	if err != nil {
		b.Fatal(err)
	}
	if err := st.Upsert(context.Background(), "bench", rng.Chunks("bench.txt", n, dim)); err != nil {
		b.Fatal(err)
	}
	return st, col
}

// BenchmarkUpsert measures batched writes into a fresh collection.
func BenchmarkUpsert(b *testing.B) {
	ctx := context.Background()
	for _, size := range []int{100, 1000} {
		b.Run(fmt.Sprintf("chunks_%d", size), func(b *testing.B) {
			chunks := testutil.NewRNG(42).Chunks("bench.txt", size, 128)

			b.ResetTimer()
			b.ReportAllocs()
			for b.Loop() {
				st := New()
				if _, err := st.EnsureCollection("bench", model.DefaultSchema(128)); err != nil {
					b.Fatal(err)
				}
				if err := st.Upsert(ctx, "bench", chunks); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

// BenchmarkSearchDense measures the dense scan branch.
func BenchmarkSearchDense(b *testing.B) {
	ctx := context.Background()
	for _, size := range []int{1000, 10000} {
		b.Run(fmt.Sprintf("chunks_%d", size), func(b *testing.B) {
			_, col := benchCollection(b, size, 128)
			query := testutil.NewRNG(7).UnitVector(128)

			b.ResetTimer()
			b.ReportAllocs()
			for b.Loop() {
				if _, err := col.SearchDense(ctx, query, 10); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

// BenchmarkSearchSparse measures the roaring-backed sparse branch.
func BenchmarkSearchSparse(b *testing.B) {
	ctx := context.Background()
	for _, size := range []int{1000, 10000} {
		b.Run(fmt.Sprintf("chunks_%d", size), func(b *testing.B) {
			_, col := benchCollection(b, size, 128)
			query := encode.Sparse(testutil.NewRNG(7).Sentence(8))

			b.ResetTimer()
			b.ReportAllocs()
			for b.Loop() {
				if _, err := col.SearchSparse(ctx, query, 10); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}
