// Package format describes how records are framed inside a byte stream.
//
// Three framings are supported:
//
//	format.Prefix()         // [len uint32 LE][payload]...
//	format.Delimiter('\n')  // payload '\n' payload '\n' ...
//	format.Fixed(16)        // payloads of exactly 16 bytes, back to back
//
// A Format is a small value; the zero value is invalid.
package format

import (
	"errors"
	"fmt"
)

// PrefixSize is the width of the length header used by Prefix framing.
const PrefixSize = 4

// Kind identifies the framing discipline.
type Kind uint8

const (
	// KindInvalid is the zero Kind.
	KindInvalid Kind = iota
	// KindPrefix frames each record with a 4-byte little-endian length.
	KindPrefix
	// KindDelimiter terminates each record with a delimiter byte.
	KindDelimiter
	// KindFixed uses records of a constant length.
	KindFixed
)

func (k Kind) String() string {
	switch k {
	case KindPrefix:
		return "prefix"
	case KindDelimiter:
		return "delimiter"
	case KindFixed:
		return "fixed"
	default:
		return "invalid"
	}
}

var (
	// ErrInvalidKind is returned for a Format with an unknown Kind.
	ErrInvalidKind = errors.New("format: invalid framing kind")
	// ErrInvalidLength is returned for Fixed framing with a non-positive length.
	ErrInvalidLength = errors.New("format: fixed length must be positive")
	// ErrRecordTooLarge is returned when a payload does not fit the framing.
	ErrRecordTooLarge = errors.New("format: record too large for framing")
)

// Format is a framing discipline plus its parameter.
type Format struct {
	kind      Kind
	delimiter byte
	length    int
}

// Prefix returns length-prefixed framing.
func Prefix() Format { return Format{kind: KindPrefix} }

// Delimiter returns framing where each record ends with delim.
func Delimiter(delim byte) Format { return Format{kind: KindDelimiter, delimiter: delim} }

// Fixed returns framing where each record is exactly length bytes.
func Fixed(length int) Format { return Format{kind: KindFixed, length: length} }

// Kind returns the framing kind.
func (f Format) Kind() Kind { return f.kind }

// Delim returns the delimiter byte (KindDelimiter only).
func (f Format) Delim() byte { return f.delimiter }

// Length returns the record length (KindFixed only).
func (f Format) Length() int { return f.length }

// Validate reports whether the format can be used for reading or writing.
func (f Format) Validate() error {
	switch f.kind {
	case KindPrefix, KindDelimiter:
		return nil
	case KindFixed:
		if f.length <= 0 {
			return fmt.Errorf("%w: %d", ErrInvalidLength, f.length)
		}
		return nil
	default:
		return ErrInvalidKind
	}
}

func (f Format) String() string {
	switch f.kind {
	case KindDelimiter:
		return fmt.Sprintf("delimiter(%q)", f.delimiter)
	case KindFixed:
		return fmt.Sprintf("fixed(%d)", f.length)
	default:
		return f.kind.String()
	}
}

// Parse builds a Format from its CLI/config spelling. The delimiter and
// length arguments are only consulted by the matching kind.
func Parse(kind string, delim byte, length int) (Format, error) {
	var f Format
	switch kind {
	case "prefix":
		f = Prefix()
	case "delimiter", "delim", "":
		f = Delimiter(delim)
	case "fixed":
		f = Fixed(length)
	default:
		return Format{}, fmt.Errorf("%w: %q", ErrInvalidKind, kind)
	}
	return f, f.Validate()
}
