package recio

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelmetric "go.opentelemetry.io/otel/metric"
)

// OTelMetricsCollector reports reader activity as OpenTelemetry counters
// on the global meter provider.
type OTelMetricsCollector struct {
	attrs otelmetric.MeasurementOption

	opens        otelmetric.Int64Counter
	openErrors   otelmetric.Int64Counter
	bytesRead    otelmetric.Int64Counter
	oversized    otelmetric.Int64Counter
	partial      otelmetric.Int64Counter
	decodeErrors otelmetric.Int64Counter
	records      otelmetric.Int64Counter
}

// NewOTelMetricsCollector creates the counters. attrs are attached to every
// measurement, e.g. attribute.String("pipeline", "compaction").
func NewOTelMetricsCollector(attrs ...attribute.KeyValue) (*OTelMetricsCollector, error) {
	meter := otel.Meter("github.com/hupe1980/recio")
	c := &OTelMetricsCollector{attrs: otelmetric.WithAttributes(attrs...)}

	counters := []struct {
		dst  *otelmetric.Int64Counter
		name string
		desc string
	}{
		{&c.opens, "recio.reader.opens", "Number of inputs opened"},
		{&c.openErrors, "recio.reader.open.errors", "Number of inputs that failed to open"},
		{&c.bytesRead, "recio.reader.bytes.read", "Decompressed bytes read into reader buffers"},
		{&c.oversized, "recio.reader.records.oversized", "Records larger than the reader buffer"},
		{&c.partial, "recio.reader.records.partial", "Incomplete trailing records"},
		{&c.decodeErrors, "recio.reader.decode.errors", "Malformed compressed inputs"},
		{&c.records, "recio.reader.records.read", "Records produced by readers"},
	}
	for _, ctr := range counters {
		var err error
		*ctr.dst, err = meter.Int64Counter(ctr.name, otelmetric.WithDescription(ctr.desc))
		if err != nil {
			return nil, fmt.Errorf("failed to create %s counter: %w", ctr.name, err)
		}
	}
	return c, nil
}

// RecordOpen implements MetricsCollector.
func (c *OTelMetricsCollector) RecordOpen(_ time.Duration, err error) {
	c.opens.Add(context.Background(), 1, c.attrs)
	if err != nil {
		c.openErrors.Add(context.Background(), 1, c.attrs)
	}
}

// RecordRefill implements MetricsCollector.
func (c *OTelMetricsCollector) RecordRefill(bytes int, _ time.Duration) {
	c.bytesRead.Add(context.Background(), int64(bytes), c.attrs)
}

// RecordOversized implements MetricsCollector.
func (c *OTelMetricsCollector) RecordOversized(int) {
	c.oversized.Add(context.Background(), 1, c.attrs)
}

// RecordPartial implements MetricsCollector.
func (c *OTelMetricsCollector) RecordPartial(_ int, yielded bool) {
	action := "dropped"
	if yielded {
		action = "yielded"
	}
	c.partial.Add(context.Background(), 1, c.attrs,
		otelmetric.WithAttributes(attribute.String("action", action)))
}

// RecordDecodeError implements MetricsCollector.
func (c *OTelMetricsCollector) RecordDecodeError(fatal bool) {
	c.decodeErrors.Add(context.Background(), 1, c.attrs,
		otelmetric.WithAttributes(attribute.Bool("fatal", fatal)))
}

// RecordStreamEnd implements MetricsCollector.
func (c *OTelMetricsCollector) RecordStreamEnd(records int64) {
	c.records.Add(context.Background(), records, c.attrs)
}
