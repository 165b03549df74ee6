package recio

import (
	"errors"
	"fmt"

	"github.com/hupe1980/recio/codec"
)

var (
	// ErrSourceNotFound is returned when an input does not exist and
	// AbortOnNotFound is set.
	ErrSourceNotFound = errors.New("recio: source not found")
	// ErrSourceEmpty is returned when an input holds zero bytes and
	// AbortOnEmpty is set.
	ErrSourceEmpty = errors.New("recio: source empty")
	// ErrDecode matches malformed compressed input.
	ErrDecode = codec.ErrDecode
	// ErrPartialRecord is returned for an incomplete trailing record when
	// AbortOnPartial is set.
	ErrPartialRecord = errors.New("recio: partial trailing record")
	// ErrConfig is matched by every *ConfigError.
	ErrConfig = errors.New("recio: invalid configuration")
	// ErrClosed is returned by operations on a closed Input.
	ErrClosed = errors.New("recio: input closed")
	// ErrNotMerge is returned when a merge-only operation is used on a leaf.
	ErrNotMerge = errors.New("recio: input is not a merge node")
)

// ConfigError reports an invalid or contradictory option combination.
// Constructors return it before any I/O happens.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("recio: invalid configuration: %s: %s", e.Field, e.Reason)
}

func (e *ConfigError) Unwrap() error { return ErrConfig }

// FatalError is an unrecoverable stream condition. It is distinct from
// io.EOF so callers can decide whether to stop, log or retry the whole run.
//
// errors.Is matches both the condition sentinel (ErrSourceEmpty,
// ErrPartialRecord, ...) and the underlying cause, if any.
type FatalError struct {
	Condition error
	Source    string
	Err       error
}

func (e *FatalError) Error() string {
	if e.Err == nil || e.Err == e.Condition {
		return fmt.Sprintf("%v: %s", e.Condition, e.Source)
	}
	return fmt.Sprintf("%v: %s: %v", e.Condition, e.Source, e.Err)
}

func (e *FatalError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Condition}
	}
	return []error{e.Condition, e.Err}
}

func fatal(condition error, source string, cause error) error {
	return &FatalError{Condition: condition, Source: source, Err: cause}
}
