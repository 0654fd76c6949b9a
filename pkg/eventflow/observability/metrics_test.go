package observability

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func setupMetricsTest(t *testing.T) *sdkmetric.ManualReader {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	original := otel.GetMeterProvider()
	otel.SetMeterProvider(provider)

	t.Cleanup(func() {
		otel.SetMeterProvider(original)
		if err := provider.Shutdown(context.Background()); err != nil {
			t.Logf("Error shutting down meter provider: %v", err)
		}
	})
	return reader
}

func collectMetrics(t *testing.T, reader *sdkmetric.ManualReader) *metricdata.ResourceMetrics {
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	return &rm
}

func findMetric(rm *metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

func sumOf(t *testing.T, m *metricdata.Metrics) int64 {
	t.Helper()
	require.NotNil(t, m)
	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok, "expected Sum[int64], got %T", m.Data)
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	return total
}

func TestNewMetricsRecorder_ReturnsRecorder(t *testing.T) {
	setupMetricsTest(t)
	assert.NotNil(t, NewMetricsRecorder())
}

func TestOtelMetrics_Lifecycle(t *testing.T) {
	reader := setupMetricsTest(t)
	m, err := newOtelMetrics()
	require.NoError(t, err)

	ctx := context.Background()
	m.RecordEventQueued(ctx, "save", 1)
	m.RecordEventQueued(ctx, "save", 2)
	m.RecordEventExecution(ctx, "save", 20*time.Millisecond, nil)
	m.RecordEventExecution(ctx, "save", 5*time.Millisecond, errors.New("boom"))
	m.RecordEventRetry(ctx, "save", 1)
	m.RecordEventCancelled(ctx, "save", "user")
	m.RecordEventDropped(ctx, "dropOldest")

	rm := collectMetrics(t, reader)
	assert.Equal(t, int64(2), sumOf(t, findMetric(rm, "eventflow.event.queued")))
	assert.Equal(t, int64(2), sumOf(t, findMetric(rm, "eventflow.event.executions")))
	assert.Equal(t, int64(1), sumOf(t, findMetric(rm, "eventflow.event.errors")))
	assert.Equal(t, int64(1), sumOf(t, findMetric(rm, "eventflow.event.retries")))
	assert.Equal(t, int64(1), sumOf(t, findMetric(rm, "eventflow.event.cancelled")))
	assert.Equal(t, int64(1), sumOf(t, findMetric(rm, "eventflow.event.dropped")))

	latency := findMetric(rm, "eventflow.event.latency_ms")
	require.NotNil(t, latency)
	hist, ok := latency.Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	require.Len(t, hist.DataPoints, 1)
	assert.Equal(t, uint64(2), hist.DataPoints[0].Count)

	depth := findMetric(rm, "eventflow.queue.depth")
	require.NotNil(t, depth)
	depthHist, ok := depth.Data.(metricdata.Histogram[int64])
	require.True(t, ok)
	require.Len(t, depthHist.DataPoints, 1)
	assert.Equal(t, int64(3), depthHist.DataPoints[0].Sum)
}
