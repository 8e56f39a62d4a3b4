package ingest

import (
	"context"
	"testing"

	"github.com/brainos/retrieval/chunk"
	"github.com/brainos/retrieval/embedding"
	"github.com/brainos/retrieval/encode"
	"github.com/brainos/retrieval/model"
	"github.com/brainos/retrieval/store"
	"github.com/brainos/retrieval/testutil"
)

// BenchmarkPipelineIngest measures the full build-encode-write path for one
// synthetic document per iteration.
func BenchmarkPipelineIngest(b *testing.B) {
	ctx := context.Background()
	const dim = 64

	elements := testutil.NewRNG(42).Elements(10, 5)

	b.ResetTimer()
	b.ReportAllocs()
	for b.Loop() {
		st := store.New()
		writer := NewWriter(st, "bench", model.DefaultSchema(dim))
		pipeline := NewPipeline(
			chunk.New(),
			encode.New(embedding.NewDeterministic(dim), dim),
			writer,
		)

		job, err := pipeline.Submit(ctx, "bench.txt", elements)
		if err != nil {
			b.Fatal(err)
		}
		if _, err := job.Wait(ctx); err != nil {
			b.Fatal(err)
		}
	}
}
