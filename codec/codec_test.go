package codec

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestForFilename(t *testing.T) {
	tests := map[string]Kind{
		"part-0001.rec":     None,
		"part-0001.rec.gz":  Gzip,
		"part-0001.rec.lz4": LZ4,
		"part-0001.rec.zst": Zstd,
		"events.zstd":       Zstd,
		"archive.gz.txt":    None,
	}
	for name, want := range tests {
		assert.Equal(t, want, ForFilename(name), name)
	}
}

func TestByName(t *testing.T) {
	for _, k := range []Kind{None, Gzip, LZ4, Zstd} {
		got, ok := ByName(k.String())
		require.True(t, ok)
		assert.Equal(t, k, got)
	}
	_, ok := ByName("snappy")
	assert.False(t, ok)
}

func TestReader_RoundTrip(t *testing.T) {
	payload := bytes.Repeat([]byte("sorted-record\n"), 5000)

	for _, kind := range []Kind{None, Gzip, LZ4, Zstd} {
		t.Run(kind.String(), func(t *testing.T) {
			compressed, err := Compress(kind, payload)
			require.NoError(t, err)

			r, err := NewReader(kind, bytes.NewReader(compressed), 1024)
			require.NoError(t, err)
			defer r.Close()

			got, err := io.ReadAll(r)
			require.NoError(t, err)
			assert.Equal(t, payload, got)
		})
	}
}

func TestReader_EmptyInput(t *testing.T) {
	for _, kind := range []Kind{Gzip, LZ4, Zstd} {
		t.Run(kind.String(), func(t *testing.T) {
			r, err := NewReader(kind, bytes.NewReader(nil), 0)
			require.NoError(t, err)

			n, err := r.Read(make([]byte, 16))
			assert.Equal(t, 0, n)
			assert.Equal(t, io.EOF, err)
		})
	}
}

func TestReader_CorruptInput(t *testing.T) {
	garbage := []byte("this is definitely not a compressed stream")

	for _, kind := range []Kind{Gzip, LZ4, Zstd} {
		t.Run(kind.String(), func(t *testing.T) {
			r, err := NewReader(kind, bytes.NewReader(garbage), 0)
			require.NoError(t, err)

			_, err = io.ReadAll(r)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrDecode))

			var de *DecodeError
			require.ErrorAs(t, err, &de)
			assert.Equal(t, kind, de.Kind)
		})
	}
}

func TestReader_TruncatedInput(t *testing.T) {
	payload := bytes.Repeat([]byte("0123456789"), 1000)
	compressed, err := Compress(Gzip, payload)
	require.NoError(t, err)

	r, err := NewReader(Gzip, bytes.NewReader(compressed[:len(compressed)/2]), 0)
	require.NoError(t, err)

	_, err = io.ReadAll(r)
	require.ErrorIs(t, err, ErrDecode)
}

type failingReader struct{ err error }

func (f failingReader) Read([]byte) (int, error) { return 0, f.err }

func TestReader_SourceErrorPassesThrough(t *testing.T) {
	boom := errors.New("disk on fire")

	r, err := NewReader(Gzip, failingReader{err: boom}, 0)
	require.NoError(t, err)

	_, err = r.Read(make([]byte, 8))
	require.ErrorIs(t, err, boom)
	assert.False(t, errors.Is(err, ErrDecode))
}
