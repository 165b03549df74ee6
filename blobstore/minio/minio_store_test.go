package minio

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/hupe1980/recio/blobstore"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/stretchr/testify/require"
)

// TestMinioStore_Integration requires a running MinIO instance.
// Skip if not available.
func TestMinioStore_Integration(t *testing.T) {
	endpoint := "localhost:9000"
	bucket := "test-recio"

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4("minioadmin", "minioadmin", ""),
		Secure: false,
	})
	if err != nil {
		t.Skipf("MinIO client creation failed: %v", err)
	}

	ctx := context.Background()

	if _, err = client.ListBuckets(ctx); err != nil {
		t.Skipf("MinIO not available: %v", err)
	}

	exists, err := client.BucketExists(ctx, bucket)
	require.NoError(t, err)
	if !exists {
		require.NoError(t, client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}))
	}

	data := []byte("a\nb\nc\n")
	_, err = client.PutObject(ctx, bucket, "test-prefix/part-0.rec", bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{})
	require.NoError(t, err)

	store := NewStore(client, bucket, "test-prefix/")

	blob, err := store.Open(ctx, "part-0.rec")
	require.NoError(t, err)
	require.Equal(t, int64(len(data)), blob.Size())

	buf := make([]byte, len(data))
	n, err := blob.ReadAt(ctx, buf, 0)
	require.NoError(t, err)
	require.Equal(t, len(data), n)
	require.Equal(t, data, buf)

	rc, err := blob.ReadRange(ctx, 2, 2)
	require.NoError(t, err)
	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.Equal(t, "b\n", string(got))

	sr, err := blob.(blobstore.Streamer).Stream(ctx)
	require.NoError(t, err)
	got, err = io.ReadAll(sr)
	require.NoError(t, err)
	require.NoError(t, sr.Close())
	require.Equal(t, data, got)

	names, err := store.List(ctx, "")
	require.NoError(t, err)
	require.Contains(t, names, "part-0.rec")

	_, err = store.Open(ctx, "missing.rec")
	require.True(t, errors.Is(err, blobstore.ErrNotFound))
}
