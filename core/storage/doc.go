// Package storage provides an abstraction layer for object storage services.
//
// It wraps the MinIO Go client to provide a simplified interface for common operations
// like checking bucket existence, uploading files, and listing objects. This abstraction
// supports both AWS S3 and self-hosted MinIO instances.
//
// # Client Interface
//
// The Client interface abstracts the underlying storage provider, making it easier
// to mock storage interactions for unit testing (as seen in core/storage/mocks).
//
// # Helpers
//
//   - ParseURI: Splits an s3://bucket/key location.
//   - ReadObject: Downloads a snapshot document into memory.
//   - WriteObject: Uploads a run report, creating the bucket when needed.
//
// # Usage
//
//	client, err := storage.NewClient(config)
//	bucket, key, err := storage.ParseURI("s3://snapshots/site.yaml")
//	data, err := storage.ReadObject(ctx, client, bucket, key)
package storage
