package s3

import (
	"bytes"
	"context"
	"errors"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	"github.com/brainos/retrieval/blobstore"
)

// ErrConflict is returned by PutIfNotExists when the object already exists.
var ErrConflict = errors.New("s3: object already exists")

// ExpressStore implements blobstore.BlobStore on S3 Express One Zone
// directory buckets (names ending in --azid--x-s3).
//
// Express buckets give single-digit millisecond reads, which suits reader
// nodes that pull snapshot archives on a cold start, and they support
// conditional writes (If-None-Match), which lets the publisher enforce that
// snapshot names are write-once.
type ExpressStore struct {
	client Client
	bucket string
	prefix string
	upload UploadConfig
}

// NewExpressStore wraps an existing client for a directory bucket.
func NewExpressStore(client Client, bucket, rootPrefix string) *ExpressStore {
	return &ExpressStore{
		client: client,
		bucket: bucket,
		prefix: rootPrefix,
		upload: DefaultUploadConfig(),
	}
}

func (s *ExpressStore) key(name string) string {
	return path.Join(s.prefix, name)
}

// Open opens an existing blob for reading.
func (s *ExpressStore) Open(ctx context.Context, name string) (blobstore.Blob, error) {
	return openBlob(ctx, s.client, s.bucket, s.key(name))
}

// Put writes a small blob in one request.
func (s *ExpressStore) Put(ctx context.Context, name string, data []byte) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(name)),
		Body:   bytes.NewReader(data),
	})
	return err
}

// PutIfNotExists writes a blob only if the key is absent, using a
// conditional write. Returns ErrConflict when the key exists, which makes
// snapshot names first-writer-wins.
func (s *ExpressStore) PutIfNotExists(ctx context.Context, name string, data []byte) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.key(name)),
		Body:        bytes.NewReader(data),
		IfNoneMatch: aws.String("*"),
	})
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) {
			switch apiErr.ErrorCode() {
			case "PreconditionFailed", "ConditionalRequestConflict":
				return ErrConflict
			}
		}
		return err
	}
	return nil
}

// Create starts a streaming upload, visible only after a clean Close.
func (s *ExpressStore) Create(ctx context.Context, name string) (blobstore.WritableBlob, error) {
	uploader := newUploader(s.client, s.upload)
	return newStreamingWritableBlob(ctx, s.client, uploader, s.bucket, s.key(name), s.upload.EnableChecksum), nil
}

// Delete removes a blob.
func (s *ExpressStore) Delete(ctx context.Context, name string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(name)),
	})
	return err
}

// List returns all blob names under the prefix, sorted.
func (s *ExpressStore) List(ctx context.Context, prefix string) ([]string, error) {
	return listObjects(ctx, s.client, s.bucket, s.key(prefix), s.prefix)
}
