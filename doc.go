// Package retrieval is the retrieval core of a document-research system:
// an embedded hybrid index with grounded, citation-tagged answers.
//
// Documents are parsed into layout elements, folded into provenance-tagged
// chunks, encoded into a dense embedding plus a deterministic sparse vector,
// and upserted idempotently. A query runs both representations against the
// index concurrently, fuses the rankings, and hands the top chunks to a
// language model that must answer from that context alone.
//
// # Quick Start
//
//	cfg, _ := config.Load("config.yaml")
//	svc, _ := retrieval.New(cfg)
//	defer svc.Close()
//
//	job, _ := svc.IngestFile(ctx, "reports/q3.txt")
//	job.Wait(ctx)
//
//	resp, _ := svc.Query(ctx, model.QueryRequest{Query: "How did revenue develop?"})
//	fmt.Println(resp.Reasoning)
//	for _, c := range resp.Citations {
//	    fmt.Println(c.Source, c.PageNumber, c.Score)
//	}
//
// # Replication
//
// A Service with a bridge attached publishes point-in-time snapshots;
// replicas poll the bridge and swap new snapshots in atomically, so readers
// scale out without touching the writer:
//
//	blobs, pointers, _ := retrieval.OpenBridge(ctx, cfg.Bridge)
//
//	svc, _ := retrieval.New(cfg, retrieval.WithBridge(blobs, pointers))
//	svc.Publish(ctx)
//
//	replica, _ := retrieval.OpenReplica(cfg, "/var/lib/replica", retrieval.WithBridge(blobs, pointers))
//	replica.Sync(ctx)
//	resp, _ := replica.Query(ctx, model.QueryRequest{Query: "..."})
//
// The bridge can be a shared directory, a MinIO bucket, or S3 with an
// optional DynamoDB-guarded pointer.
//
// # Capabilities
//
// The embedding and synthesis models are external capabilities behind small
// interfaces. Production configs select Ollama or an OpenAI-compatible
// endpoint; capabilities.mock swaps in deterministic in-process stand-ins so
// tests and offline runs never dial out. Document parsing is a capability
// too: the default parser handles plain text and lightweight markup, and
// layout/pdf supplies a PDF text extractor for WithParser.
package retrieval
