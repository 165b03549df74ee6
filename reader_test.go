package recio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/recio/codec"
	"github.com/hupe1980/recio/format"
	"github.com/hupe1980/recio/resource"
)

func encode(t *testing.T, f format.Format, recs ...string) []byte {
	t.Helper()
	payloads := make([][]byte, len(recs))
	for i, r := range recs {
		payloads[i] = []byte(r)
	}
	data, err := format.Encode(f, payloads...)
	require.NoError(t, err)
	return data
}

// drain reads to the end and returns the payloads plus the terminal error,
// which is nil for a clean io.EOF.
func drain(t *testing.T, in *Input) ([]string, error) {
	t.Helper()
	var out []string
	for {
		rec, err := in.Advance()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, string(rec.Data))
	}
}

func TestReader_RoundTrip(t *testing.T) {
	recs := []string{"alpha", "", "b", "charlie", "dd"}

	tests := []struct {
		name   string
		format format.Format
		recs   []string
	}{
		{"prefix", format.Prefix(), recs},
		{"newline", format.Delimiter('\n'), recs},
		{"nul", format.Delimiter(0), recs},
		{"fixed", format.Fixed(3), []string{"abc", "def", "ghi"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in, err := OpenBuffer(encode(t, tt.format, tt.recs...), nil, WithFormat(tt.format))
			require.NoError(t, err)
			defer in.Close()

			got, err := drain(t, in)
			require.NoError(t, err)
			assert.Equal(t, tt.recs, got)

			// End of stream is stable.
			_, err = in.Advance()
			assert.ErrorIs(t, err, io.EOF)
		})
	}
}

func TestReader_SmallBuffer(t *testing.T) {
	var recs []string
	for i := 0; i < 200; i++ {
		recs = append(recs, fmt.Sprintf("record-%03d", i))
	}

	for _, f := range []format.Format{format.Prefix(), format.Delimiter('\n'), format.Fixed(10)} {
		t.Run(f.String(), func(t *testing.T) {
			in, err := OpenBuffer(encode(t, f, recs...), nil, WithFormat(f), WithBufferSize(16))
			require.NoError(t, err)
			defer in.Close()

			got, err := drain(t, in)
			require.NoError(t, err)
			assert.Equal(t, recs, got)
		})
	}
}

func TestReader_Oversized(t *testing.T) {
	big := strings.Repeat("x", 100)
	recs := []string{"short", big, "end", strings.Repeat("y", 33), "z"}

	for _, f := range []format.Format{format.Prefix(), format.Delimiter('\n')} {
		t.Run(f.String(), func(t *testing.T) {
			metrics := &BasicMetricsCollector{}
			in, err := OpenBuffer(encode(t, f, recs...), nil,
				WithFormat(f), WithBufferSize(16), WithMetrics(metrics))
			require.NoError(t, err)
			defer in.Close()

			got, err := drain(t, in)
			require.NoError(t, err)
			assert.Equal(t, recs, got)
			assert.Equal(t, int64(2), metrics.GetStats().OversizedCount)
		})
	}

	t.Run("fixed", func(t *testing.T) {
		in, err := OpenBuffer([]byte("abcdefghijkl"), nil, WithFixed(6), WithBufferSize(4))
		require.NoError(t, err)
		defer in.Close()

		got, err := drain(t, in)
		require.NoError(t, err)
		assert.Equal(t, []string{"abcdef", "ghijkl"}, got)
	})
}

func TestReader_OversizedMemoryAccounting(t *testing.T) {
	rc := resource.NewController(resource.Config{MemoryLimitBytes: 1 << 20})
	data := encode(t, format.Prefix(), strings.Repeat("x", 100), "ok")

	in, err := OpenBuffer(data, nil, WithPrefix(), WithBufferSize(16), WithResources(rc))
	require.NoError(t, err)
	assert.Equal(t, int64(16), rc.MemoryUsage())

	rec, err := in.Advance()
	require.NoError(t, err)
	assert.Len(t, rec.Data, 100)
	assert.Equal(t, int64(116), rc.MemoryUsage())

	rec, err = in.Advance()
	require.NoError(t, err)
	assert.Equal(t, "ok", string(rec.Data))
	assert.Equal(t, int64(16), rc.MemoryUsage())

	require.NoError(t, in.Close())
	assert.Equal(t, int64(0), rc.MemoryUsage())
}

func TestReader_OversizedOverMemoryLimit(t *testing.T) {
	rc := resource.NewController(resource.Config{MemoryLimitBytes: 64})
	data := encode(t, format.Prefix(), strings.Repeat("x", 100))

	in, err := OpenBuffer(data, nil, WithPrefix(), WithBufferSize(16), WithResources(rc))
	require.NoError(t, err)
	defer in.Close()

	_, err = in.Advance()
	assert.ErrorIs(t, err, resource.ErrMemoryLimit)
}

func TestReader_DelimitedOversizedOverBudget(t *testing.T) {
	t.Run("exceeds limit", func(t *testing.T) {
		rc := resource.NewController(resource.Config{MemoryLimitBytes: 64})
		in, err := OpenBuffer(lines(strings.Repeat("x", 100)), nil, WithBufferSize(16), WithResources(rc))
		require.NoError(t, err)
		defer in.Close()

		_, err = in.Advance()
		assert.ErrorIs(t, err, resource.ErrMemoryLimit)
		assert.Equal(t, int64(16), rc.MemoryUsage())
	})

	t.Run("budget held elsewhere", func(t *testing.T) {
		rc := resource.NewController(resource.Config{MemoryLimitBytes: 200})
		require.NoError(t, rc.AcquireMemory(context.Background(), 150))

		in, err := OpenBuffer(lines(strings.Repeat("x", 40)), nil, WithBufferSize(16), WithResources(rc))
		require.NoError(t, err)
		defer in.Close()

		// Fails at once instead of waiting for the other reservation.
		_, err = in.Advance()
		assert.ErrorIs(t, err, resource.ErrMemoryLimit)
		assert.Equal(t, int64(166), rc.MemoryUsage())
	})
}

func TestReader_PartialRecord(t *testing.T) {
	tests := []struct {
		name    string
		data    []byte
		opts    []Option
		whole   []string
		partial string
	}{
		{
			name:    "delimiter",
			data:    []byte("a\nb\nc"),
			opts:    []Option{WithDelimiter('\n')},
			whole:   []string{"a", "b"},
			partial: "c",
		},
		{
			name:    "fixed",
			data:    []byte("abcdefgh"),
			opts:    []Option{WithFixed(3)},
			whole:   []string{"abc", "def"},
			partial: "gh",
		},
		{
			name:    "prefix payload",
			data:    append(encode(t, format.Prefix(), "aa"), 4, 0, 0, 0, 'b', 'b'),
			opts:    []Option{WithPrefix()},
			whole:   []string{"aa"},
			partial: "bb",
		},
		{
			name:    "prefix header",
			data:    append(encode(t, format.Prefix(), "aa"), 4, 0),
			opts:    []Option{WithPrefix()},
			whole:   []string{"aa"},
			partial: "\x04\x00",
		},
		{
			name:    "oversized delimiter",
			data:    []byte("a\n" + strings.Repeat("q", 40)),
			opts:    []Option{WithDelimiter('\n'), WithBufferSize(8)},
			whole:   []string{"a"},
			partial: strings.Repeat("q", 40),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name+"/drop", func(t *testing.T) {
			metrics := &BasicMetricsCollector{}
			in, err := OpenBuffer(tt.data, nil, append(tt.opts, WithMetrics(metrics))...)
			require.NoError(t, err)
			defer in.Close()

			got, err := drain(t, in)
			require.NoError(t, err)
			assert.Equal(t, tt.whole, got)
			assert.Equal(t, int64(1), metrics.GetStats().PartialDropped)
		})

		t.Run(tt.name+"/allow", func(t *testing.T) {
			in, err := OpenBuffer(tt.data, nil, append(tt.opts, WithAllowPartial())...)
			require.NoError(t, err)
			defer in.Close()

			got, err := drain(t, in)
			require.NoError(t, err)
			assert.Equal(t, append(append([]string(nil), tt.whole...), tt.partial), got)
		})

		t.Run(tt.name+"/abort", func(t *testing.T) {
			in, err := OpenBuffer(tt.data, nil, append(tt.opts, WithAbortOnPartial())...)
			require.NoError(t, err)
			defer in.Close()

			got, err := drain(t, in)
			require.Error(t, err)
			assert.Equal(t, tt.whole, got)
			assert.ErrorIs(t, err, ErrPartialRecord)

			var fe *FatalError
			require.ErrorAs(t, err, &fe)
			assert.Equal(t, "buffer", fe.Source)

			// The failure is sticky.
			_, again := in.Advance()
			assert.Equal(t, err, again)
		})
	}
}

func TestReader_Compressed(t *testing.T) {
	recs := []string{"one", "two", "three"}
	raw := encode(t, format.Delimiter('\n'), recs...)

	for _, kind := range []codec.Kind{codec.Gzip, codec.LZ4, codec.Zstd} {
		t.Run(kind.String(), func(t *testing.T) {
			compressed, err := codec.Compress(kind, raw)
			require.NoError(t, err)

			in, err := OpenBuffer(compressed, nil, WithCompression(kind, 0), WithBufferSize(4))
			require.NoError(t, err)
			defer in.Close()

			got, err := drain(t, in)
			require.NoError(t, err)
			assert.Equal(t, recs, got)
		})
	}
}

func TestOpen_SuffixSelectsCodec(t *testing.T) {
	dir := t.TempDir()
	recs := []string{"k1", "k2"}
	raw := encode(t, format.Prefix(), recs...)

	for _, suffix := range []string{".gz", ".lz4", ".zst", ""} {
		t.Run("suffix"+suffix, func(t *testing.T) {
			kind := codec.ForFilename("x" + suffix)
			data, err := codec.Compress(kind, raw)
			require.NoError(t, err)

			path := filepath.Join(dir, "data"+suffix)
			require.NoError(t, os.WriteFile(path, data, 0o600))

			in, err := Open(path, WithPrefix())
			require.NoError(t, err)
			defer in.Close()

			got, err := drain(t, in)
			require.NoError(t, err)
			assert.Equal(t, recs, got)
		})
	}
}

func TestReader_DecodeError(t *testing.T) {
	good, err := codec.Compress(codec.Gzip, []byte("a\nb\nc\n"))
	require.NoError(t, err)
	corrupt := append(good, []byte("this is not a gzip member")...)

	t.Run("ends early", func(t *testing.T) {
		metrics := &BasicMetricsCollector{}
		in, err := OpenBuffer(corrupt, nil, WithGzip(0), WithMetrics(metrics))
		require.NoError(t, err)
		defer in.Close()

		got, err := drain(t, in)
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b", "c"}, got)
		assert.Equal(t, int64(1), metrics.GetStats().DecodeErrors)
	})

	t.Run("abort", func(t *testing.T) {
		in, err := OpenBuffer(corrupt, nil, WithGzip(0), WithAbortOnError())
		require.NoError(t, err)
		defer in.Close()

		got, err := drain(t, in)
		assert.Equal(t, []string{"a", "b", "c"}, got)
		assert.ErrorIs(t, err, ErrDecode)

		var fe *FatalError
		assert.ErrorAs(t, err, &fe)
	})

	t.Run("garbage never yields records", func(t *testing.T) {
		in, err := OpenBuffer([]byte("definitely not gzip\n"), nil, WithGzip(0), WithAllowPartial())
		require.NoError(t, err)
		defer in.Close()

		got, err := drain(t, in)
		require.NoError(t, err)
		assert.Empty(t, got)
	})
}

func TestOpen_NotFound(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "missing.txt")

	in, err := Open(missing)
	require.NoError(t, err)
	got, err := drain(t, in)
	require.NoError(t, err)
	assert.Empty(t, got)
	require.NoError(t, in.Close())

	// Missing is not escalated by the empty policy.
	in, err = Open(missing, WithAbortOnEmpty())
	require.NoError(t, err)
	require.NoError(t, in.Close())

	_, err = Open(missing, WithAbortOnNotFound())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSourceNotFound)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestOpen_Empty(t *testing.T) {
	in, err := OpenBuffer(nil, nil)
	require.NoError(t, err)
	_, err = in.Advance()
	assert.ErrorIs(t, err, io.EOF)
	require.NoError(t, in.Close())

	released := 0
	_, err = OpenBuffer([]byte{}, func([]byte) { released++ }, WithAbortOnEmpty())
	assert.ErrorIs(t, err, ErrSourceEmpty)
	assert.Equal(t, 1, released)

	empty, err := codec.Compress(codec.Gzip, nil)
	require.NoError(t, err)
	_, err = OpenBuffer(empty, nil, WithGzip(0), WithAbortOnEmpty())
	assert.ErrorIs(t, err, ErrSourceEmpty)

	// A non-empty source passes the check and loses nothing.
	in, err = OpenBuffer([]byte("a\nb\n"), nil, WithAbortOnEmpty())
	require.NoError(t, err)
	got, err := drain(t, in)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, got)
	require.NoError(t, in.Close())
}

func TestOptions_Validate(t *testing.T) {
	sum := func(group []Record, tag int) Record { return group[0] }

	tests := []struct {
		name  string
		opts  []Option
		field string
	}{
		{"buffer size", []Option{WithBufferSize(0)}, "BufferSize"},
		{"fixed zero", []Option{WithFixed(0)}, "Format"},
		{"unset format", []Option{WithFormat(format.Format{})}, "Format"},
		{"partial policy", []Option{WithAllowPartial(), WithAbortOnPartial()}, "AllowPartial"},
		{"merge mode", []Option{WithKeepFirst(), WithReducer(sum)}, "KeepFirst"},
		{"compression buffer", []Option{WithGzip(-1)}, "CompressionBufferSize"},
		{"codec", []Option{WithCompression(codec.Kind(42), 0)}, "Compression"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			released := false
			_, err := OpenBuffer([]byte("x\n"), func([]byte) { released = true }, tt.opts...)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrConfig)
			assert.False(t, released)

			var ce *ConfigError
			require.ErrorAs(t, err, &ce)
			assert.Equal(t, tt.field, ce.Field)

			_, err = NewMerge(nil, tt.opts...)
			assert.ErrorIs(t, err, ErrConfig)
		})
	}
}

func TestReader_ResetAndCurrent(t *testing.T) {
	in, err := OpenBuffer([]byte("a\nb\nc\n"), nil)
	require.NoError(t, err)
	defer in.Close()

	assert.Nil(t, in.Current())
	in.Reset() // no current record: no-op

	rec, err := in.Advance()
	require.NoError(t, err)
	assert.Equal(t, "a", string(rec.Data))
	assert.Equal(t, "a", string(in.Current().Data))

	in.Reset()
	assert.Nil(t, in.Current())

	rec, err = in.Advance()
	require.NoError(t, err)
	assert.Equal(t, "a", string(rec.Data))

	rec, err = in.Advance()
	require.NoError(t, err)
	assert.Equal(t, "b", string(rec.Data))

	got, err := drain(t, in)
	require.NoError(t, err)
	assert.Equal(t, []string{"c"}, got)
	assert.Nil(t, in.Current())
}

func TestReader_Count(t *testing.T) {
	metrics := &BasicMetricsCollector{}
	in, err := OpenBuffer(encode(t, format.Prefix(), "1", "2", "3", "4", "5"), nil,
		WithPrefix(), WithMetrics(metrics))
	require.NoError(t, err)
	defer in.Close()

	n, err := in.Count()
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)

	_, err = in.Advance()
	assert.ErrorIs(t, err, io.EOF)

	stats := metrics.GetStats()
	assert.Equal(t, int64(1), stats.StreamsEnded)
	assert.Equal(t, int64(5), stats.RecordsRead)
}

func TestReader_Tag(t *testing.T) {
	in, err := OpenBuffer([]byte("a\n"), nil, WithTag(9))
	require.NoError(t, err)
	defer in.Close()

	rec, err := in.Advance()
	require.NoError(t, err)
	assert.Equal(t, 9, rec.Tag)
	assert.True(t, in.Sources().Contains(9))
}

func TestInput_CloseOnce(t *testing.T) {
	released := 0
	in, err := OpenBuffer([]byte("a\nb\n"), func([]byte) { released++ })
	require.NoError(t, err)

	_, err = in.Advance()
	require.NoError(t, err)

	require.NoError(t, in.Close())
	require.NoError(t, in.Close())
	assert.Equal(t, 1, released)

	_, err = in.Advance()
	assert.ErrorIs(t, err, ErrClosed)
	assert.Nil(t, in.Current())
}

func TestOpenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "recs.txt")
	require.NoError(t, os.WriteFile(path, []byte("x\ny\n"), 0o600))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	in, err := OpenFile(f, false)
	require.NoError(t, err)
	got, err := drain(t, in)
	require.NoError(t, err)
	assert.Equal(t, []string{"x", "y"}, got)
	require.NoError(t, in.Close())

	// The caller still owns f.
	_, err = f.Seek(0, io.SeekStart)
	assert.NoError(t, err)
}

func TestReader_Logging(t *testing.T) {
	var buf bytes.Buffer
	logger := NewTextLogger(&buf, slog.LevelDebug)

	data := []byte(strings.Repeat("x", 40) + "\ntail")
	in, err := OpenBuffer(data, nil, WithBufferSize(8), WithLogger(logger), WithTag(3))
	require.NoError(t, err)
	defer in.Close()

	_, err = drain(t, in)
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "oversized record")
	assert.Contains(t, out, "partial trailing record")
	assert.Contains(t, out, "action=dropped")
	assert.Contains(t, out, "tag=3")
	assert.Contains(t, out, "source=buffer")
}
