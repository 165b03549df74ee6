// Package source provides the byte sources a framed reader pulls from.
//
// A Source is an io.Reader with an idempotent Close and a name used in logs
// and errors. Four kinds are provided: named files, already-open
// descriptors, in-memory buffers and object-store blobs. Each releases its
// underlying resource exactly once, whichever way the reader is torn down.
package source

import (
	"context"
	"io"
	"os"
	"sync"

	"github.com/hupe1980/recio/blobstore"
	"github.com/hupe1980/recio/resource"
)

// ErrNotFound is returned by Open and FromBlob for missing inputs.
var ErrNotFound = blobstore.ErrNotFound

// Source supplies raw bytes on demand.
type Source interface {
	io.Reader
	io.Closer
	// Name identifies the source in logs and errors.
	Name() string
}

type closeOnce struct {
	once sync.Once
	err  error
}

func (c *closeOnce) do(fn func() error) error {
	c.once.Do(func() {
		if fn != nil {
			c.err = fn()
		}
	})
	return c.err
}

// fileSource reads from an *os.File.
type fileSource struct {
	f        *os.File
	name     string
	canClose bool
	closer   closeOnce
}

// Open opens the named file. Missing files yield an error satisfying
// errors.Is(err, ErrNotFound).
func Open(path string) (Source, error) {
	f, err := os.Open(path) //nolint:gosec // G304: caller-provided input path
	if err != nil {
		return nil, err
	}
	return &fileSource{f: f, name: path, canClose: true}, nil
}

// FromFile wraps an open descriptor. When canClose is false the caller keeps
// ownership and Close leaves the descriptor open.
func FromFile(f *os.File, canClose bool) Source {
	return &fileSource{f: f, name: f.Name(), canClose: canClose}
}

func (s *fileSource) Read(p []byte) (int, error) { return s.f.Read(p) }
func (s *fileSource) Name() string               { return s.name }

func (s *fileSource) Close() error {
	return s.closer.do(func() error {
		if !s.canClose {
			return nil
		}
		return s.f.Close()
	})
}

// bufferSource reads from a byte slice.
type bufferSource struct {
	buf     []byte
	off     int
	release func([]byte)
	closer  closeOnce
}

// FromBuffer serves buf. If release is non-nil it is called with buf exactly
// once when the source is closed, handing ownership back to the caller.
func FromBuffer(buf []byte, release func([]byte)) Source {
	return &bufferSource{buf: buf, release: release}
}

func (s *bufferSource) Read(p []byte) (int, error) {
	if s.off >= len(s.buf) {
		return 0, io.EOF
	}
	n := copy(p, s.buf[s.off:])
	s.off += n
	return n, nil
}

func (s *bufferSource) Name() string { return "buffer" }

func (s *bufferSource) Close() error {
	return s.closer.do(func() error {
		buf := s.buf
		s.buf = nil
		if s.release != nil {
			s.release(buf)
		}
		return nil
	})
}

// Empty returns a source with no bytes, used when a missing input is treated
// as an empty stream.
func Empty(name string) Source {
	return &namedSource{Reader: eofReader{}, name: name}
}

type eofReader struct{}

func (eofReader) Read([]byte) (int, error) { return 0, io.EOF }

type namedSource struct {
	io.Reader
	name   string
	close  func() error
	closer closeOnce
}

func (s *namedSource) Name() string { return s.name }
func (s *namedSource) Close() error { return s.closer.do(s.close) }

// RateLimited charges every read of src against rc's I/O budget. Closing
// the returned source closes src.
func RateLimited(ctx context.Context, src Source, rc *resource.Controller) Source {
	if rc == nil {
		return src
	}
	return &namedSource{
		Reader: resource.NewRateLimitedReader(ctx, src, rc),
		name:   src.Name(),
		close:  src.Close,
	}
}
