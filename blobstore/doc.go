// Package blobstore provides the object-store backends that record inputs can
// be streamed from.
//
// BlobStore is deliberately read-only: inputs are produced by some other
// system and this module only consumes them.
//
// # Built-in Implementations
//
//   - LocalStore: Local filesystem with mmap support
//   - MemoryStore: In-memory blobs, mainly for tests
//   - s3.Store: Amazon S3 with range reads
//   - minio.Store: MinIO and other S3-compatible stores
//
// # Custom Implementations
//
//	type BlobStore interface {
//	    Open(ctx, name) (Blob, error)
//	    List(ctx, prefix) ([]string, error)
//	}
//
// Blobs expose ranged reads so large inputs can be streamed in chunks:
//
//	type Blob interface {
//	    io.Closer
//	    ReadAt(ctx, p, off) (int, error)
//	    ReadRange(ctx, off, len) (io.ReadCloser, error)
//	    Size() int64
//	}
package blobstore
