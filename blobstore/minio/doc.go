// Package minio implements the bridge store on MinIO and other S3-compatible
// object storage, which makes it a natural target for air-gapped deployments
// where the research corpus index must cross a network boundary as files.
//
// # Basic Usage
//
//	client, err := minio.New("localhost:9000", &minio.Options{
//	    Creds:  credentials.NewStaticV4("minioadmin", "minioadmin", ""),
//	    Secure: false,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	store := minioblob.NewStore(client, "brainos-snapshots", "bridge/")
//
// The writer side hands the store to snapshot.NewPublisher; the reader side
// hands it to snapshot.NewSubscriber. Snapshot archives stream through
// PutObject uploads, range GETs serve partial reads, and the Latest Pointer
// is a small overwritten object (last writer wins).
//
// Connect builds the client from an Options value so the store can be wired
// straight from configuration:
//
//	store, err := minioblob.Connect(ctx, minioblob.Options{
//	    Endpoint:  "storage.internal:9000",
//	    AccessKey: os.Getenv("MINIO_ACCESS_KEY"),
//	    SecretKey: os.Getenv("MINIO_SECRET_KEY"),
//	    Bucket:    "brainos-snapshots",
//	})
package minio
