package codec

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// DefaultBufferSize is used when NewReader is given a non-positive size.
const DefaultBufferSize = 64 << 10

var zstdDecoderPool sync.Pool

func getZstdDecoder(r io.Reader) (*zstd.Decoder, error) {
	if v := zstdDecoderPool.Get(); v != nil {
		dec := v.(*zstd.Decoder)
		if err := dec.Reset(r); err != nil {
			dec.Close()
			return nil, err
		}
		return dec, nil
	}
	return zstd.NewReader(r, zstd.WithDecoderConcurrency(1))
}

func putZstdDecoder(dec *zstd.Decoder) {
	// Detach from the source so the pooled decoder does not pin it.
	if err := dec.Reset(nil); err != nil {
		dec.Close()
		return
	}
	zstdDecoderPool.Put(dec)
}

// sourceError marks errors raised by the compressed source itself so they
// are not misreported as decode errors.
type sourceError struct{ err error }

func (e *sourceError) Error() string { return e.err.Error() }
func (e *sourceError) Unwrap() error { return e.err }

type guardReader struct{ r io.Reader }

func (g *guardReader) Read(p []byte) (int, error) {
	n, err := g.r.Read(p)
	if err != nil && !errors.Is(err, io.EOF) {
		err = &sourceError{err: err}
	}
	return n, err
}

// NewReader wraps r with the decompressor for kind. The decompressor is
// initialised on first Read, so an empty compressed source reads as an
// empty stream rather than a header error. Closing the returned reader
// releases the decompressor but never closes r.
func NewReader(kind Kind, r io.Reader, bufferSize int) (io.ReadCloser, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("codec: unknown kind %d", uint8(kind))
	}
	if kind == None {
		return io.NopCloser(r), nil
	}
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	return &decodeReader{
		kind: kind,
		src:  bufio.NewReaderSize(&guardReader{r: r}, bufferSize),
	}, nil
}

type decodeReader struct {
	kind  Kind
	src   *bufio.Reader
	dec   io.Reader
	close func()
	err   error
}

func (d *decodeReader) init() error {
	// An empty input is an empty stream for every codec.
	if _, err := d.src.Peek(1); err != nil {
		return err
	}

	switch d.kind {
	case Gzip:
		zr, err := gzip.NewReader(d.src)
		if err != nil {
			return err
		}
		d.dec = zr
		d.close = func() { _ = zr.Close() }
	case LZ4:
		d.dec = lz4.NewReader(d.src)
	case Zstd:
		dec, err := getZstdDecoder(d.src)
		if err != nil {
			return err
		}
		d.dec = dec
		d.close = func() { putZstdDecoder(dec) }
	}
	return nil
}

func (d *decodeReader) classify(err error) error {
	if errors.Is(err, io.EOF) {
		return io.EOF
	}
	var se *sourceError
	if errors.As(err, &se) {
		return se.err
	}
	return &DecodeError{Kind: d.kind, Err: err}
}

func (d *decodeReader) Read(p []byte) (int, error) {
	if d.err != nil {
		return 0, d.err
	}
	if d.dec == nil {
		if err := d.init(); err != nil {
			d.err = d.classify(err)
			return 0, d.err
		}
	}
	n, err := d.dec.Read(p)
	if err != nil {
		d.err = d.classify(err)
		return n, d.err
	}
	return n, nil
}

func (d *decodeReader) Close() error {
	if d.close != nil {
		d.close()
		d.close = nil
	}
	d.dec = nil
	if d.err == nil {
		d.err = io.ErrClosedPipe
	}
	return nil
}
