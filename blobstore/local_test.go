package blobstore

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStore_OpenReadList(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "run-1"), 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(root, "run-1", "part-0.rec"), []byte("alpha\nbeta\n"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(root, "run-1", "part-1.rec"), []byte("gamma\n"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(root, "other.rec"), []byte("x\n"), 0o600))

	store := NewLocalStore(root)
	ctx := context.Background()

	names, err := store.List(ctx, "run-1/")
	require.NoError(t, err)
	assert.Equal(t, []string{"run-1/part-0.rec", "run-1/part-1.rec"}, names)

	blob, err := store.Open(ctx, "run-1/part-0.rec")
	require.NoError(t, err)
	defer blob.Close()

	assert.Equal(t, int64(11), blob.Size())

	buf := make([]byte, 4)
	n, err := blob.ReadAt(ctx, buf, 6)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, "beta", string(buf))

	rc, err := blob.ReadRange(ctx, 0, 5)
	require.NoError(t, err)
	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "alpha", string(got))

	m, ok := blob.(Mappable)
	require.True(t, ok)
	data, err := m.Bytes()
	require.NoError(t, err)
	assert.Equal(t, "alpha\nbeta\n", string(data))

	st, ok := blob.(Streamer)
	require.True(t, ok)
	sr, err := st.Stream(ctx)
	require.NoError(t, err)
	got, err = io.ReadAll(sr)
	require.NoError(t, err)
	assert.Equal(t, "alpha\nbeta\n", string(got))
}

func TestLocalStore_NotFound(t *testing.T) {
	store := NewLocalStore(t.TempDir())
	_, err := store.Open(context.Background(), "missing.rec")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestMemoryStore(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "b", []byte("2")))
	require.NoError(t, store.Put(ctx, "a", []byte("1")))
	require.NoError(t, store.Put(ctx, "c/x", []byte("3")))

	names, err := store.List(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c/x"}, names)

	blob, err := store.Open(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, int64(1), blob.Size())

	require.NoError(t, store.Delete(ctx, "a"))
	_, err = store.Open(ctx, "a")
	assert.True(t, errors.Is(err, ErrNotFound))
}
