// Package s3 provides an S3 implementation of the blobstore.BlobStore interface.
//
// # Usage
//
//	cfg, err := config.LoadDefaultConfig(ctx)
//	store := s3.NewStore(awss3.NewFromConfig(cfg), "my-bucket", "runs/")
//
//	in, err := recio.OpenBlob(ctx, store, "part-0001.rec.gz")
//
// # Features
//
//   - HEAD-sized blobs with ranged GET reads
//   - Automatic pagination for listing
//   - Configurable prefix for multi-tenant isolation
package s3
