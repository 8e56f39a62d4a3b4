package s3

import (
	"context"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/brainos/retrieval/blobstore"
)

// Options configure the S3 store.
type Options struct {
	// Prefix is prepended to all blob names (e.g. "bridge/").
	Prefix string

	// Region overrides the region from the AWS config chain.
	Region string

	// Upload tunes streaming uploads of snapshot archives.
	Upload UploadConfig
}

// WithPrefix sets the root prefix for all keys.
func WithPrefix(prefix string) func(*Options) {
	return func(o *Options) {
		o.Prefix = prefix
	}
}

// WithRegion overrides the AWS region.
func WithRegion(region string) func(*Options) {
	return func(o *Options) {
		o.Region = region
	}
}

// WithUploadConfig overrides the upload tuning.
func WithUploadConfig(cfg UploadConfig) func(*Options) {
	return func(o *Options) {
		o.Upload = cfg
	}
}

// New builds a Store from the ambient AWS configuration chain (environment,
// shared config, instance role).
func New(ctx context.Context, bucket string, optFns ...func(*Options)) (*Store, error) {
	opts := Options{Upload: DefaultUploadConfig()}
	for _, fn := range optFns {
		fn(&opts)
	}

	var loadOpts []func(*awsconfig.LoadOptions) error
	if opts.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(opts.Region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, err
	}

	store := NewStore(s3.NewFromConfig(cfg), bucket, opts.Prefix)
	store.upload = opts.Upload
	return store, nil
}

// Store implements blobstore.BlobStore on a standard S3 bucket. Reads use
// range GETs; large archives stream up through multipart uploads.
type Store struct {
	client Client
	bucket string
	prefix string
	upload UploadConfig
}

// NewStore wraps an existing client. rootPrefix is prepended to all keys.
func NewStore(client Client, bucket, rootPrefix string) *Store {
	return &Store{
		client: client,
		bucket: bucket,
		prefix: rootPrefix,
		upload: DefaultUploadConfig(),
	}
}

func (s *Store) key(name string) string {
	return path.Join(s.prefix, name)
}

// Open opens an existing blob for reading.
func (s *Store) Open(ctx context.Context, name string) (blobstore.Blob, error) {
	return openBlob(ctx, s.client, s.bucket, s.key(name))
}

// Put writes a small blob in one request, with CRC32C validation when
// enabled. S3 puts are atomic, so the object is either fully visible or
// absent.
func (s *Store) Put(ctx context.Context, name string, data []byte) error {
	if s.upload.EnableChecksum {
		return putWithChecksum(ctx, s.client, s.bucket, s.key(name), data)
	}
	return putPlain(ctx, s.client, s.bucket, s.key(name), data)
}

// Create starts a streaming multipart upload. The object becomes visible
// only when Close returns nil; failed uploads are aborted.
func (s *Store) Create(ctx context.Context, name string) (blobstore.WritableBlob, error) {
	uploader := newUploader(s.client, s.upload)
	return newStreamingWritableBlob(ctx, s.client, uploader, s.bucket, s.key(name), s.upload.EnableChecksum), nil
}

// Delete removes a blob. S3 deletes of absent keys succeed, matching the
// BlobStore contract.
func (s *Store) Delete(ctx context.Context, name string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(name)),
	})
	return err
}

// List returns all blob names under the prefix, sorted.
func (s *Store) List(ctx context.Context, prefix string) ([]string, error) {
	return listObjects(ctx, s.client, s.bucket, s.key(prefix), s.prefix)
}
