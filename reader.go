package recio

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/hupe1980/recio/codec"
	"github.com/hupe1980/recio/format"
	"github.com/hupe1980/recio/resource"
	"github.com/hupe1980/recio/source"
)

// reader frames one byte source into records.
//
// The window buf[start:end] holds decoded bytes not yet consumed. Records
// are returned as sub-slices of buf whenever they fit; a record longer than
// the buffer is assembled in a one-off allocation that lives until the next
// Advance.
type reader struct {
	src    source.Source
	dec    io.ReadCloser
	name   string
	opts   Options
	format format.Format
	log    *Logger
	ctx    context.Context

	buf          []byte
	start        int
	end          int
	eof          bool
	decodeFailed bool
	failErr      error

	cur     Record
	hasCur  bool
	held    bool
	err     error
	records int64

	over     []byte
	overHeld int64
	bufHeld  int64
	closed   bool
}

// newReader takes ownership of src; it is closed on any error.
func newReader(src source.Source, opts Options, checkEmpty bool) (*reader, error) {
	name := src.Name()
	src = source.RateLimited(opts.Context, src, opts.Resources)

	dec, err := codec.NewReader(opts.Compression, src, opts.CompressionBufferSize)
	if err != nil {
		_ = src.Close()
		return nil, err
	}

	size := opts.BufferSize
	if opts.Format.Kind() == format.KindPrefix && size < format.PrefixSize {
		size = format.PrefixSize
	}
	if err := opts.Resources.AcquireMemory(opts.Context, int64(size)); err != nil {
		_ = dec.Close()
		_ = src.Close()
		return nil, fmt.Errorf("recio: reserve buffer for %s: %w", name, err)
	}

	r := &reader{
		src:     src,
		dec:     dec,
		name:    name,
		opts:    opts,
		format:  opts.Format,
		log:     opts.Logger.WithSource(name).WithTag(opts.Tag),
		ctx:     opts.Context,
		buf:     make([]byte, size),
		bufHeld: int64(size),
	}

	if checkEmpty && opts.AbortOnEmpty {
		more, err := r.fill()
		if err == nil && !more {
			err = fatal(ErrSourceEmpty, name, nil)
		}
		if err != nil {
			_ = r.Close()
			return nil, err
		}
	}
	return r, nil
}

// Advance moves to the next record. It returns io.EOF at the end of the
// stream and a *FatalError for conditions escalated by the options.
func (r *reader) Advance() (*Record, error) {
	if r.closed {
		return nil, ErrClosed
	}
	if r.held {
		r.held = false
		return &r.cur, nil
	}
	r.releaseOversized()
	if r.err != nil {
		r.hasCur = false
		return nil, r.err
	}

	data, err := r.next()
	if err != nil {
		r.hasCur = false
		r.err = err
		if errors.Is(err, io.EOF) {
			r.opts.Metrics.RecordStreamEnd(r.records)
		}
		return nil, err
	}
	r.records++
	r.cur = Record{Data: data, Tag: r.opts.Tag}
	r.hasCur = true
	return &r.cur, nil
}

// Current returns the last record, or nil before the first Advance and
// after Reset.
func (r *reader) Current() *Record {
	if !r.hasCur || r.held {
		return nil
	}
	return &r.cur
}

// Reset makes the next Advance return the current record again.
func (r *reader) Reset() {
	if r.hasCur {
		r.held = true
	}
}

func (r *reader) next() ([]byte, error) {
	switch r.format.Kind() {
	case format.KindPrefix:
		return r.nextPrefixed()
	case format.KindFixed:
		return r.nextFixed()
	default:
		return r.nextDelimited()
	}
}

func (r *reader) nextDelimited() ([]byte, error) {
	delim := r.format.Delim()
	scanned := 0
	for {
		if i := bytes.IndexByte(r.buf[r.start+scanned:r.end], delim); i >= 0 {
			end := r.start + scanned + i
			data := r.buf[r.start:end:end]
			r.start = end + 1
			return data, nil
		}
		scanned = r.end - r.start
		if scanned == len(r.buf) {
			return r.delimitedOversized(delim)
		}
		more, err := r.fill()
		if err != nil {
			return nil, err
		}
		if !more {
			return r.tail()
		}
	}
}

// delimitedOversized accumulates a record that has no delimiter within a
// full window.
func (r *reader) delimitedOversized(delim byte) ([]byte, error) {
	over := make([]byte, 0, 2*len(r.buf))
	over = append(over, r.buf[r.start:r.end]...)
	r.start = r.end
	for {
		more, err := r.fill()
		if err != nil {
			return nil, err
		}
		if !more {
			return r.partial(over)
		}
		window := r.buf[r.start:r.end]
		if i := bytes.IndexByte(window, delim); i >= 0 {
			over = append(over, window[:i]...)
			r.start += i + 1
			if err := r.holdOversized(over); err != nil {
				return nil, err
			}
			return over, nil
		}
		over = append(over, window...)
		r.start = r.end
	}
}

func (r *reader) nextPrefixed() ([]byte, error) {
	for r.end-r.start < format.PrefixSize {
		more, err := r.fill()
		if err != nil {
			return nil, err
		}
		if !more {
			return r.tail()
		}
	}

	n := int(binary.LittleEndian.Uint32(r.buf[r.start:]))
	if format.PrefixSize+n > len(r.buf) {
		r.start += format.PrefixSize
		return r.readOversized(n)
	}

	for r.end-r.start < format.PrefixSize+n {
		more, err := r.fill()
		if err != nil {
			return nil, err
		}
		if !more {
			return r.partial(r.buf[r.start+format.PrefixSize : r.end])
		}
	}
	begin := r.start + format.PrefixSize
	end := begin + n
	r.start = end
	return r.buf[begin:end:end], nil
}

func (r *reader) nextFixed() ([]byte, error) {
	n := r.format.Length()
	if n > len(r.buf) {
		if r.start == r.end {
			more, err := r.fill()
			if err != nil {
				return nil, err
			}
			if !more {
				return nil, io.EOF
			}
		}
		return r.readOversized(n)
	}

	for r.end-r.start < n {
		more, err := r.fill()
		if err != nil {
			return nil, err
		}
		if !more {
			return r.tail()
		}
	}
	begin := r.start
	r.start += n
	return r.buf[begin:r.start:r.start], nil
}

// readOversized reads an n-byte record of known length that cannot fit the
// window into an exact-size allocation.
func (r *reader) readOversized(n int) ([]byte, error) {
	if err := r.opts.Resources.AcquireMemory(r.ctx, int64(n)); err != nil {
		return nil, fmt.Errorf("recio: oversized record of %d bytes in %s: %w", n, r.name, err)
	}
	data := make([]byte, n)
	r.over, r.overHeld = data, int64(n)
	r.opts.Metrics.RecordOversized(n)
	r.log.LogOversized(r.ctx, n, len(r.buf))

	got := copy(data, r.buf[r.start:r.end])
	r.start += got
	for got < n {
		more, err := r.fill()
		if err != nil {
			return nil, err
		}
		if !more {
			return r.partial(data[:got])
		}
		c := copy(data[got:], r.buf[r.start:r.end])
		r.start += c
		got += c
	}
	return data, nil
}

// holdOversized accounts a delimited record that was assembled before its
// size was known. The bytes are already allocated, so the reservation does
// not wait for budget held by other readers.
func (r *reader) holdOversized(data []byte) error {
	if !r.opts.Resources.TryAcquireMemory(int64(cap(data))) {
		return fmt.Errorf("recio: oversized record of %d bytes in %s: %w", len(data), r.name, resource.ErrMemoryLimit)
	}
	r.over, r.overHeld = data, int64(cap(data))
	r.opts.Metrics.RecordOversized(len(data))
	r.log.LogOversized(r.ctx, len(data), len(r.buf))
	return nil
}

func (r *reader) releaseOversized() {
	if r.over == nil {
		return
	}
	r.opts.Resources.ReleaseMemory(r.overHeld)
	r.over, r.overHeld = nil, 0
}

// fill reads more bytes into the tail of the window, compacting consumed
// bytes out first. It reports false once the source is exhausted. A decode
// error ends the stream here unless AbortOnError is set. Failures are
// reported after the bytes read alongside them have been framed.
func (r *reader) fill() (bool, error) {
	if r.eof {
		return false, r.failErr
	}
	if r.start > 0 {
		r.end = copy(r.buf, r.buf[r.start:r.end])
		r.start = 0
	}
	for r.end < len(r.buf) {
		began := time.Now()
		n, err := r.dec.Read(r.buf[r.end:])
		if n > 0 {
			r.end += n
			r.opts.Metrics.RecordRefill(n, time.Since(began))
		}
		switch {
		case err == nil:
			if n > 0 {
				return true, nil
			}
		case errors.Is(err, io.EOF):
			r.eof = true
			return n > 0, nil
		case errors.Is(err, ErrDecode):
			r.eof = true
			r.opts.Metrics.RecordDecodeError(r.opts.AbortOnError)
			r.log.LogDecodeError(r.ctx, err, r.opts.AbortOnError)
			if r.opts.AbortOnError {
				r.failErr = fatal(ErrDecode, r.name, err)
			} else {
				r.decodeFailed = true
			}
			return r.filled(n)
		default:
			r.eof = true
			r.failErr = fmt.Errorf("recio: read %s: %w", r.name, err)
			return r.filled(n)
		}
	}
	return true, nil
}

func (r *reader) filled(n int) (bool, error) {
	if n > 0 {
		return true, nil
	}
	return false, r.failErr
}

// tail handles whatever is left in the window once the source is exhausted.
func (r *reader) tail() ([]byte, error) {
	if r.start == r.end {
		return nil, io.EOF
	}
	return r.partial(r.buf[r.start:r.end])
}

// partial applies the trailing-record policy to data.
func (r *reader) partial(data []byte) ([]byte, error) {
	r.start = r.end
	size := len(data)

	switch {
	case r.decodeFailed:
		// Bytes cut short by a decode error are never yielded.
		r.opts.Metrics.RecordPartial(size, false)
		r.log.LogPartial(r.ctx, size, "dropped after decode error")
		return nil, io.EOF
	case r.opts.AbortOnPartial:
		r.opts.Metrics.RecordPartial(size, false)
		r.log.LogPartial(r.ctx, size, "abort")
		return nil, fatal(ErrPartialRecord, r.name, nil)
	case r.opts.AllowPartial:
		r.opts.Metrics.RecordPartial(size, true)
		r.log.LogPartial(r.ctx, size, "yielded")
		return data, nil
	default:
		r.opts.Metrics.RecordPartial(size, false)
		r.log.LogPartial(r.ctx, size, "dropped")
		return nil, io.EOF
	}
}

// Close releases the buffer, the decompressor and the source. It is safe
// to call more than once.
func (r *reader) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	r.releaseOversized()
	r.opts.Resources.ReleaseMemory(r.bufHeld)
	r.bufHeld = 0
	r.buf = nil
	r.hasCur, r.held = false, false
	return errors.Join(r.dec.Close(), r.src.Close())
}
