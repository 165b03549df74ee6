package recio

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestBasicMetricsCollector(t *testing.T) {
	m := &BasicMetricsCollector{}

	m.RecordOpen(10, nil)
	m.RecordOpen(30, errors.New("boom"))
	m.RecordRefill(100, 4)
	m.RecordRefill(50, 2)
	m.RecordOversized(1000)
	m.RecordPartial(3, true)
	m.RecordPartial(3, false)
	m.RecordDecodeError(false)
	m.RecordStreamEnd(42)

	stats := m.GetStats()
	assert.Equal(t, int64(2), stats.OpenCount)
	assert.Equal(t, int64(1), stats.OpenErrors)
	assert.Equal(t, int64(20), stats.OpenAvgNanos)
	assert.Equal(t, int64(150), stats.BytesRead)
	assert.Equal(t, int64(3), stats.RefillAvgNanos)
	assert.Equal(t, int64(1000), stats.OversizedBytes)
	assert.Equal(t, int64(1), stats.PartialYielded)
	assert.Equal(t, int64(1), stats.PartialDropped)
	assert.Equal(t, int64(1), stats.DecodeErrors)
	assert.Equal(t, int64(42), stats.RecordsRead)
}

func TestOTelMetricsCollector(t *testing.T) {
	ctx := context.Background()

	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	prev := otel.GetMeterProvider()
	otel.SetMeterProvider(provider)
	defer otel.SetMeterProvider(prev)

	collector, err := NewOTelMetricsCollector(attribute.String("pipeline", "test"))
	require.NoError(t, err)

	in, err := OpenBuffer([]byte("a\nbb\ntail"), nil, WithMetrics(collector))
	require.NoError(t, err)
	got, err := drain(t, in)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "bb"}, got)
	require.NoError(t, in.Close())

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))

	sums := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			data, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				continue
			}
			for _, dp := range data.DataPoints {
				sums[m.Name] += dp.Value
			}
		}
	}

	assert.Equal(t, int64(2), sums["recio.reader.records.read"])
	assert.Equal(t, int64(9), sums["recio.reader.bytes.read"])
	assert.Equal(t, int64(1), sums["recio.reader.records.partial"])
}
