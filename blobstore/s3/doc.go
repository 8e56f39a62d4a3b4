// Package s3 implements the bridge store on Amazon S3, plus a DynamoDB
// backed PointerStore for deployments that want conditional writes guarding
// the Latest Pointer.
//
// # Usage
//
//	store, err := s3.New(ctx, "brainos-snapshots",
//	    s3.WithPrefix("bridge/"),
//	    s3.WithRegion("us-east-1"),
//	)
//
// Snapshot archives stream through multipart uploads with CRC32C part
// checksums; reads use range GETs so subscribers can verify a manifest
// without pulling the whole archive. ExpressStore targets S3 Express One
// Zone directory buckets and adds first-writer-wins conditional puts.
//
// For the Latest Pointer, pair the store with DDBPointerStore when a second
// publisher must be detected rather than silently overwritten:
//
//	ptr := s3.NewDDBPointerStore(ddbClient, "brainos-pointers", "s3://bucket/bridge")
package s3
