package recio

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems, or use
// OTelMetricsCollector for OpenTelemetry.
type MetricsCollector interface {
	// RecordOpen is called after an input is opened (or fails to open).
	RecordOpen(duration time.Duration, err error)

	// RecordRefill is called after each read into a reader buffer.
	// bytes is the number of decompressed bytes obtained.
	RecordRefill(bytes int, duration time.Duration)

	// RecordOversized is called when a record takes the oversized path.
	RecordOversized(size int)

	// RecordPartial is called for an incomplete trailing record.
	// yielded reports whether it was handed to the caller.
	RecordPartial(size int, yielded bool)

	// RecordDecodeError is called on malformed compressed input.
	RecordDecodeError(fatal bool)

	// RecordStreamEnd is called once when a reader reaches end of stream.
	// records is the number of records it produced.
	RecordStreamEnd(records int64)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordOpen(time.Duration, error) {}
func (NoopMetricsCollector) RecordRefill(int, time.Duration) {}
func (NoopMetricsCollector) RecordOversized(int)             {}
func (NoopMetricsCollector) RecordPartial(int, bool)         {}
func (NoopMetricsCollector) RecordDecodeError(bool)          {}
func (NoopMetricsCollector) RecordStreamEnd(int64)           {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and tests without external dependencies.
type BasicMetricsCollector struct {
	OpenCount        atomic.Int64
	OpenErrors       atomic.Int64
	OpenTotalNanos   atomic.Int64
	RefillCount      atomic.Int64
	BytesRead        atomic.Int64
	RefillTotalNanos atomic.Int64
	OversizedCount   atomic.Int64
	OversizedBytes   atomic.Int64
	PartialYielded   atomic.Int64
	PartialDropped   atomic.Int64
	DecodeErrors     atomic.Int64
	StreamsEnded     atomic.Int64
	RecordsRead      atomic.Int64
}

// RecordOpen implements MetricsCollector.
func (b *BasicMetricsCollector) RecordOpen(duration time.Duration, err error) {
	b.OpenCount.Add(1)
	b.OpenTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.OpenErrors.Add(1)
	}
}

// RecordRefill implements MetricsCollector.
func (b *BasicMetricsCollector) RecordRefill(bytes int, duration time.Duration) {
	b.RefillCount.Add(1)
	b.BytesRead.Add(int64(bytes))
	b.RefillTotalNanos.Add(duration.Nanoseconds())
}

// RecordOversized implements MetricsCollector.
func (b *BasicMetricsCollector) RecordOversized(size int) {
	b.OversizedCount.Add(1)
	b.OversizedBytes.Add(int64(size))
}

// RecordPartial implements MetricsCollector.
func (b *BasicMetricsCollector) RecordPartial(_ int, yielded bool) {
	if yielded {
		b.PartialYielded.Add(1)
	} else {
		b.PartialDropped.Add(1)
	}
}

// RecordDecodeError implements MetricsCollector.
func (b *BasicMetricsCollector) RecordDecodeError(bool) {
	b.DecodeErrors.Add(1)
}

// RecordStreamEnd implements MetricsCollector.
func (b *BasicMetricsCollector) RecordStreamEnd(records int64) {
	b.StreamsEnded.Add(1)
	b.RecordsRead.Add(records)
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		OpenCount:      b.OpenCount.Load(),
		OpenErrors:     b.OpenErrors.Load(),
		OpenAvgNanos:   avg(b.OpenTotalNanos.Load(), b.OpenCount.Load()),
		RefillCount:    b.RefillCount.Load(),
		BytesRead:      b.BytesRead.Load(),
		RefillAvgNanos: avg(b.RefillTotalNanos.Load(), b.RefillCount.Load()),
		OversizedCount: b.OversizedCount.Load(),
		OversizedBytes: b.OversizedBytes.Load(),
		PartialYielded: b.PartialYielded.Load(),
		PartialDropped: b.PartialDropped.Load(),
		DecodeErrors:   b.DecodeErrors.Load(),
		StreamsEnded:   b.StreamsEnded.Load(),
		RecordsRead:    b.RecordsRead.Load(),
	}
}

func avg(total, count int64) int64 {
	if count == 0 {
		return 0
	}
	return total / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	OpenCount      int64
	OpenErrors     int64
	OpenAvgNanos   int64
	RefillCount    int64
	BytesRead      int64
	RefillAvgNanos int64
	OversizedCount int64
	OversizedBytes int64
	PartialYielded int64
	PartialDropped int64
	DecodeErrors   int64
	StreamsEnded   int64
	RecordsRead    int64
}
