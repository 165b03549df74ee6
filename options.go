package recio

import (
	"context"

	"github.com/hupe1980/recio/codec"
	"github.com/hupe1980/recio/format"
	"github.com/hupe1980/recio/resource"
)

// DefaultBufferSize is the reader buffer size used when none is configured.
const DefaultBufferSize = 64 << 10

// Options configures a framed reader or a merge node. A snapshot is taken
// at construction; later changes to the caller's copy have no effect.
type Options struct {
	// BufferSize is the size of the reader's window in bytes, measured after
	// decompression. Records longer than this take the oversized path.
	BufferSize int

	// Format is the framing discipline. Default: newline-delimited.
	Format format.Format

	// Compression selects the decompressor. Open overrides None with the
	// codec implied by the filename suffix.
	Compression codec.Kind

	// CompressionBufferSize is the read-ahead used on the compressed side.
	// Zero means BufferSize.
	CompressionBufferSize int

	// Tag is attached to every record a leaf produces, and passed to the
	// Reducer of a merge node.
	Tag int

	// AbortOnError makes malformed compressed input fatal instead of ending
	// the stream at the last good record.
	AbortOnError bool

	// AllowPartial yields an incomplete trailing record as a short record.
	AllowPartial bool

	// AbortOnPartial makes an incomplete trailing record fatal.
	// Mutually exclusive with AllowPartial.
	AbortOnPartial bool

	// AbortOnNotFound fails construction when the input does not exist.
	AbortOnNotFound bool

	// AbortOnEmpty fails construction when the input has no bytes.
	AbortOnEmpty bool

	// KeepFirst makes a merge node collapse every equal run to its first
	// record. Mutually exclusive with Reducer.
	KeepFirst bool

	// Reducer makes a merge node collapse every equal run through this func.
	Reducer Reducer

	Logger    *Logger
	Metrics   MetricsCollector
	Resources *resource.Controller

	// Context bounds blocking resource acquisition and rate-limited reads.
	Context context.Context
}

// DefaultOptions holds the defaults applied before any Option.
var DefaultOptions = Options{
	BufferSize: DefaultBufferSize,
	Format:     format.Delimiter('\n'),
}

// Option mutates Options.
type Option func(o *Options)

// WithBufferSize sets the reader window size.
func WithBufferSize(n int) Option {
	return func(o *Options) { o.BufferSize = n }
}

// WithFormat sets the framing discipline.
func WithFormat(f format.Format) Option {
	return func(o *Options) { o.Format = f }
}

// WithPrefix selects 4-byte little-endian length-prefixed framing.
func WithPrefix() Option { return WithFormat(format.Prefix()) }

// WithDelimiter selects delimiter-terminated framing.
func WithDelimiter(delim byte) Option { return WithFormat(format.Delimiter(delim)) }

// WithFixed selects fixed-length framing.
func WithFixed(length int) Option { return WithFormat(format.Fixed(length)) }

// WithCompression selects a codec and its compressed-side buffer size.
func WithCompression(kind codec.Kind, bufferSize int) Option {
	return func(o *Options) {
		o.Compression = kind
		o.CompressionBufferSize = bufferSize
	}
}

// WithGzip is shorthand for WithCompression(codec.Gzip, bufferSize).
func WithGzip(bufferSize int) Option { return WithCompression(codec.Gzip, bufferSize) }

// WithLZ4 is shorthand for WithCompression(codec.LZ4, bufferSize).
func WithLZ4(bufferSize int) Option { return WithCompression(codec.LZ4, bufferSize) }

// WithZstd is shorthand for WithCompression(codec.Zstd, bufferSize).
func WithZstd(bufferSize int) Option { return WithCompression(codec.Zstd, bufferSize) }

// WithTag sets the source tag.
func WithTag(tag int) Option {
	return func(o *Options) { o.Tag = tag }
}

func WithAbortOnError() Option    { return func(o *Options) { o.AbortOnError = true } }
func WithAllowPartial() Option    { return func(o *Options) { o.AllowPartial = true } }
func WithAbortOnPartial() Option  { return func(o *Options) { o.AbortOnPartial = true } }
func WithAbortOnNotFound() Option { return func(o *Options) { o.AbortOnNotFound = true } }
func WithAbortOnEmpty() Option    { return func(o *Options) { o.AbortOnEmpty = true } }

// WithKeepFirst collapses equal runs of a merge node to their first record.
func WithKeepFirst() Option {
	return func(o *Options) { o.KeepFirst = true }
}

// WithReducer collapses equal runs of a merge node through fn.
func WithReducer(fn Reducer) Option {
	return func(o *Options) { o.Reducer = fn }
}

// WithLogger sets the logger. nil restores the no-op logger.
func WithLogger(l *Logger) Option {
	return func(o *Options) { o.Logger = l }
}

// WithMetrics sets the metrics collector. nil restores the no-op collector.
func WithMetrics(m MetricsCollector) Option {
	return func(o *Options) { o.Metrics = m }
}

// WithResources shares a resource controller for memory, open and I/O
// budgets across many inputs.
func WithResources(rc *resource.Controller) Option {
	return func(o *Options) { o.Resources = rc }
}

// WithContext sets the context used for blocking resource acquisition.
func WithContext(ctx context.Context) Option {
	return func(o *Options) { o.Context = ctx }
}

// WithOptions replaces the whole configuration with opts.
func WithOptions(opts Options) Option {
	return func(o *Options) { *o = opts }
}

// Validate reports the first invalid or contradictory setting.
func (o *Options) Validate() error {
	if o.BufferSize <= 0 {
		return &ConfigError{Field: "BufferSize", Reason: "must be positive"}
	}
	if err := o.Format.Validate(); err != nil {
		return &ConfigError{Field: "Format", Reason: err.Error()}
	}
	if !o.Compression.Valid() {
		return &ConfigError{Field: "Compression", Reason: "unknown codec " + o.Compression.String()}
	}
	if o.CompressionBufferSize < 0 {
		return &ConfigError{Field: "CompressionBufferSize", Reason: "must not be negative"}
	}
	if o.AllowPartial && o.AbortOnPartial {
		return &ConfigError{Field: "AllowPartial", Reason: "conflicts with AbortOnPartial"}
	}
	if o.KeepFirst && o.Reducer != nil {
		return &ConfigError{Field: "KeepFirst", Reason: "conflicts with Reducer"}
	}
	return nil
}

func buildOptions(optFns []Option) (Options, error) {
	opts := DefaultOptions
	for _, fn := range optFns {
		if fn != nil {
			fn(&opts)
		}
	}
	if err := opts.Validate(); err != nil {
		return opts, err
	}
	if opts.CompressionBufferSize == 0 {
		opts.CompressionBufferSize = opts.BufferSize
	}
	if opts.Logger == nil {
		opts.Logger = NoopLogger()
	}
	if opts.Metrics == nil {
		opts.Metrics = NoopMetricsCollector{}
	}
	if opts.Context == nil {
		opts.Context = context.Background()
	}
	return opts, nil
}
