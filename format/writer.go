package format

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// AppendRecord appends payload framed according to f to dst.
func AppendRecord(dst []byte, f Format, payload []byte) ([]byte, error) {
	switch f.kind {
	case KindPrefix:
		if uint64(len(payload)) > math.MaxUint32 {
			return dst, ErrRecordTooLarge
		}
		dst = binary.LittleEndian.AppendUint32(dst, uint32(len(payload)))
		return append(dst, payload...), nil
	case KindDelimiter:
		if bytes.IndexByte(payload, f.delimiter) >= 0 {
			return dst, fmt.Errorf("format: payload contains delimiter %q", f.delimiter)
		}
		dst = append(dst, payload...)
		return append(dst, f.delimiter), nil
	case KindFixed:
		if len(payload) != f.length {
			return dst, fmt.Errorf("format: payload length %d, want %d", len(payload), f.length)
		}
		return append(dst, payload...), nil
	default:
		return dst, ErrInvalidKind
	}
}

// Writer frames records onto an io.Writer.
type Writer struct {
	w       io.Writer
	f       Format
	scratch []byte
	count   int
}

// NewWriter returns a Writer framing records with f.
func NewWriter(w io.Writer, f Format) (*Writer, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &Writer{w: w, f: f}, nil
}

// Write frames and writes a single record.
func (w *Writer) Write(payload []byte) error {
	var err error
	w.scratch, err = AppendRecord(w.scratch[:0], w.f, payload)
	if err != nil {
		return err
	}
	if _, err := w.w.Write(w.scratch); err != nil {
		return err
	}
	w.count++
	return nil
}

// Count returns the number of records written.
func (w *Writer) Count() int { return w.count }

// Encode frames all payloads into a new byte slice.
func Encode(f Format, payloads ...[]byte) ([]byte, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	var out []byte
	for _, p := range payloads {
		var err error
		if out, err = AppendRecord(out, f, p); err != nil {
			return nil, err
		}
	}
	return out, nil
}
