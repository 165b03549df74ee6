// Package codec selects and drives the decompression layer that sits between
// a byte source and the framed reader.
//
// Kinds are chosen explicitly through options or inferred from a filename
// suffix (".gz", ".lz4", ".zst"). Every malformed-input failure is reported
// as a *DecodeError so callers can tell corrupt data apart from ordinary I/O
// failures of the underlying source.
package codec

import (
	"errors"
	"fmt"
	"strings"
)

// Kind identifies a compression codec.
type Kind uint8

const (
	// None passes bytes through unchanged.
	None Kind = iota
	// Gzip is the gzip-like stream codec.
	Gzip
	// LZ4 is the block codec (LZ4 frame format).
	LZ4
	// Zstd is the Zstandard stream codec.
	Zstd
)

// ErrDecode is matched by every *DecodeError.
var ErrDecode = errors.New("codec: malformed compressed input")

// DecodeError reports corrupt or truncated compressed input.
type DecodeError struct {
	Kind Kind
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("codec %s: decode: %v", e.Kind, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrDecode) true for every DecodeError.
func (e *DecodeError) Is(target error) bool { return target == ErrDecode }

func (k Kind) String() string {
	switch k {
	case None:
		return "none"
	case Gzip:
		return "gzip"
	case LZ4:
		return "lz4"
	case Zstd:
		return "zstd"
	default:
		return fmt.Sprintf("codec(%d)", uint8(k))
	}
}

// ByName returns a built-in codec kind by its stable name.
func ByName(name string) (Kind, bool) {
	switch strings.ToLower(name) {
	case "", "none":
		return None, true
	case "gzip", "gz":
		return Gzip, true
	case "lz4":
		return LZ4, true
	case "zstd", "zst":
		return Zstd, true
	default:
		return None, false
	}
}

// ForFilename infers the codec from a filename suffix.
func ForFilename(name string) Kind {
	switch {
	case strings.HasSuffix(name, ".gz"):
		return Gzip
	case strings.HasSuffix(name, ".lz4"):
		return LZ4
	case strings.HasSuffix(name, ".zst"), strings.HasSuffix(name, ".zstd"):
		return Zstd
	default:
		return None
	}
}

// Valid reports whether k is a known codec.
func (k Kind) Valid() bool {
	return k <= Zstd
}
