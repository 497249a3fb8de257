package telemetry_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/modelgate/modelgate-server/internal/telemetry"
)

func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	return rm
}

func findMetric(rm metricdata.ResourceMetrics, name string) (metricdata.Metrics, bool) {
	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			if m.Name == name {
				return m, true
			}
		}
	}
	return metricdata.Metrics{}, false
}

func TestValidationMetrics_RecordValidation(t *testing.T) {
	t.Parallel()

	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	metrics, err := telemetry.NewValidationMetrics(provider)
	require.NoError(t, err)
	require.NotNil(t, metrics)

	ctx := context.Background()
	metrics.RecordValidation(ctx, "ok")
	metrics.RecordValidation(ctx, "ok")
	metrics.RecordValidation(ctx, "RATE_LIMITED")

	m, found := findMetric(collect(t, reader), "auth_validation_attempts_total")
	require.True(t, found)

	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok)

	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	assert.Equal(t, int64(3), total)
	assert.Len(t, sum.DataPoints, 2, "one series per outcome")
}

func TestSyncMetrics_Record(t *testing.T) {
	t.Parallel()

	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	metrics, err := telemetry.NewSyncMetrics(provider)
	require.NoError(t, err)
	require.NotNil(t, metrics)

	ctx := context.Background()
	metrics.RecordSync(ctx, 1500*time.Millisecond, true)
	metrics.RecordActiveEntries(ctx, 42)

	rm := collect(t, reader)

	duration, found := findMetric(rm, "catalog_sync_duration_seconds")
	require.True(t, found)
	hist, ok := duration.Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	require.Len(t, hist.DataPoints, 1)
	assert.Equal(t, uint64(1), hist.DataPoints[0].Count)
	assert.InDelta(t, 1.5, hist.DataPoints[0].Sum, 0.001)

	active, found := findMetric(rm, "catalog_active_entries")
	require.True(t, found)
	gauge, ok := active.Data.(metricdata.Gauge[int64])
	require.True(t, ok)
	require.Len(t, gauge.DataPoints, 1)
	assert.Equal(t, int64(42), gauge.DataPoints[0].Value)
}

func TestMetrics_NilProvider(t *testing.T) {
	t.Parallel()

	validation, err := telemetry.NewValidationMetrics(nil)
	require.NoError(t, err)
	require.Nil(t, validation)

	syncMetrics, err := telemetry.NewSyncMetrics(nil)
	require.NoError(t, err)
	require.Nil(t, syncMetrics)

	// Recording on nil metrics is a no-op, not a panic.
	ctx := context.Background()
	validation.RecordValidation(ctx, "ok")
	syncMetrics.RecordSync(ctx, time.Second, true)
	syncMetrics.RecordActiveEntries(ctx, 1)
}
