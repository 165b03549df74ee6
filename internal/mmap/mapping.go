package mmap

import (
	"io"
	"os"
	"sync/atomic"
)

// Mapping represents a read-only memory-mapped file.
// It owns the underlying byte slice and is responsible for unmapping it.
type Mapping struct {
	data   []byte
	closed atomic.Bool
	unmap  func([]byte) error
}

// Open maps the file at path into memory and advises sequential access.
// A missing file yields an error satisfying errors.Is(err, os.ErrNotExist).
func Open(path string) (*Mapping, error) {
	f, err := os.Open(path) //nolint:gosec // G304: caller-provided input path
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	fi, err := f.Stat()
	if err != nil {
		return nil, err
	}

	size := fi.Size()
	if size < 0 || int64(int(size)) != size {
		return nil, ErrInvalidSize
	}
	if size == 0 {
		return &Mapping{}, nil
	}

	data, unmapFunc, err := osMap(f, int(size))
	if err != nil {
		return nil, err
	}

	m := &Mapping{
		data:  data,
		unmap: unmapFunc,
	}
	// The hint is advisory; a failure here does not invalidate the mapping.
	_ = osAdvise(m.data, AccessSequential)

	return m, nil
}

// Close unmaps the memory. It is idempotent.
func (m *Mapping) Close() error {
	if m.closed.Swap(true) {
		return nil
	}
	if m.unmap != nil && m.data != nil {
		data := m.data
		m.data = nil
		return m.unmap(data)
	}
	return nil
}

// Bytes returns the mapped bytes, or nil once the mapping is closed.
func (m *Mapping) Bytes() []byte {
	if m.closed.Load() {
		return nil
	}
	return m.data
}

// Size returns the size of the mapping in bytes.
func (m *Mapping) Size() int {
	return len(m.data)
}

// Advise provides hints to the kernel about how the memory will be accessed.
func (m *Mapping) Advise(pattern AccessPattern) error {
	if m.closed.Load() {
		return ErrClosed
	}
	return osAdvise(m.data, pattern)
}

// ReadAt implements io.ReaderAt.
func (m *Mapping) ReadAt(p []byte, off int64) (int, error) {
	if m.closed.Load() {
		return 0, ErrClosed
	}
	if off < 0 {
		return 0, ErrInvalidOffset
	}
	if off >= int64(len(m.data)) {
		return 0, io.EOF
	}
	n := copy(p, m.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// Reader returns a sequential reader positioned at the start of the mapping.
// Pages behind the read cursor are handed back to the kernel every
// ReleaseInterval bytes, so a single pass over a large file does not keep
// it resident.
func (m *Mapping) Reader() io.Reader {
	return &streamReader{m: m, interval: ReleaseInterval}
}

// ReleaseInterval is the number of consumed bytes after which a Reader
// releases the pages behind it.
var ReleaseInterval = 8 << 20

type streamReader struct {
	m        *Mapping
	off      int
	released int
	interval int
}

func (r *streamReader) Read(p []byte) (int, error) {
	if r.m.closed.Load() {
		return 0, ErrClosed
	}
	if r.off >= len(r.m.data) {
		return 0, io.EOF
	}
	n := copy(p, r.m.data[r.off:])
	r.off += n
	if r.off-r.released >= r.interval {
		r.release()
	}
	return n, nil
}

// release advises the page-aligned range [released, off) as not needed.
func (r *streamReader) release() {
	end := r.off &^ (os.Getpagesize() - 1)
	if end <= r.released {
		return
	}
	_ = osAdvise(r.m.data[r.released:end], AccessDontNeed)
	r.released = end
}

// Released returns how many leading bytes of the mapping r has released.
func (r *streamReader) Released() int { return r.released }
