package observability

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MetricsRecorder records scheduler metrics.
// Use NewMetricsRecorder() for OTel metrics or NoopMetrics{} when disabled.
type MetricsRecorder interface {
	// RecordEventQueued records an accepted submission and the resulting queue depth.
	RecordEventQueued(ctx context.Context, debugKey string, queueLen int)

	// RecordEventExecution records one execution attempt with its duration and error status.
	RecordEventExecution(ctx context.Context, debugKey string, duration time.Duration, err error)

	// RecordEventRetry records a scheduled retry.
	RecordEventRetry(ctx context.Context, debugKey string, attempt int)

	// RecordEventCancelled records a cancellation.
	RecordEventCancelled(ctx context.Context, debugKey, reason string)

	// RecordEventDropped records an event rejected or evicted by backpressure.
	RecordEventDropped(ctx context.Context, policy string)
}

// otelMetrics implements MetricsRecorder using OpenTelemetry.
type otelMetrics struct {
	queued     metric.Int64Counter
	queueDepth metric.Int64Histogram
	executions metric.Int64Counter
	latency    metric.Float64Histogram
	errors     metric.Int64Counter
	retries    metric.Int64Counter
	cancels    metric.Int64Counter
	drops      metric.Int64Counter
}

var (
	defaultMetrics     *otelMetrics
	defaultMetricsOnce sync.Once
	defaultMetricsErr  error
)

// getDefaultMetrics returns the default OTel metrics instance.
// Lazily initializes the metrics on first call.
func getDefaultMetrics() (*otelMetrics, error) {
	defaultMetricsOnce.Do(func() {
		defaultMetrics, defaultMetricsErr = newOtelMetrics()
	})
	return defaultMetrics, defaultMetricsErr
}

// newOtelMetrics creates a new OTel metrics instance.
func newOtelMetrics() (*otelMetrics, error) {
	meter := otel.Meter("eventflow")

	queued, err := meter.Int64Counter("eventflow.event.queued",
		metric.WithDescription("Number of events accepted into the queue"),
	)
	if err != nil {
		return nil, err
	}

	queueDepth, err := meter.Int64Histogram("eventflow.queue.depth",
		metric.WithDescription("Queue length observed after each submission"),
	)
	if err != nil {
		return nil, err
	}

	executions, err := meter.Int64Counter("eventflow.event.executions",
		metric.WithDescription("Number of event execution attempts"),
	)
	if err != nil {
		return nil, err
	}

	latency, err := meter.Float64Histogram("eventflow.event.latency_ms",
		metric.WithDescription("Event execution latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	errs, err := meter.Int64Counter("eventflow.event.errors",
		metric.WithDescription("Number of failed execution attempts"),
	)
	if err != nil {
		return nil, err
	}

	retries, err := meter.Int64Counter("eventflow.event.retries",
		metric.WithDescription("Number of scheduled retries"),
	)
	if err != nil {
		return nil, err
	}

	cancels, err := meter.Int64Counter("eventflow.event.cancelled",
		metric.WithDescription("Number of cancelled events"),
	)
	if err != nil {
		return nil, err
	}

	drops, err := meter.Int64Counter("eventflow.event.dropped",
		metric.WithDescription("Number of events dropped by backpressure"),
	)
	if err != nil {
		return nil, err
	}

	return &otelMetrics{
		queued:     queued,
		queueDepth: queueDepth,
		executions: executions,
		latency:    latency,
		errors:     errs,
		retries:    retries,
		cancels:    cancels,
		drops:      drops,
	}, nil
}

// NewMetricsRecorder returns a MetricsRecorder that uses OpenTelemetry.
// If metrics initialization fails, returns a no-op recorder.
//
// The recorder uses the global OTel meter provider. Configure the provider
// before calling this function:
//
//	import "go.opentelemetry.io/otel"
//	otel.SetMeterProvider(yourProvider)
func NewMetricsRecorder() MetricsRecorder {
	m, err := getDefaultMetrics()
	if err != nil {
		slog.Warn("metrics initialization failed, using no-op recorder",
			slog.String("error", err.Error()))
		return NoopMetrics{}
	}
	return m
}

// RecordEventQueued records an accepted submission.
func (m *otelMetrics) RecordEventQueued(ctx context.Context, debugKey string, queueLen int) {
	attrs := metric.WithAttributes(attribute.String("debug_key", debugKey))
	m.queued.Add(ctx, 1, attrs)
	m.queueDepth.Record(ctx, int64(queueLen))
}

// RecordEventExecution records an execution attempt.
func (m *otelMetrics) RecordEventExecution(ctx context.Context, debugKey string, duration time.Duration, err error) {
	attrs := []attribute.KeyValue{
		attribute.String("debug_key", debugKey),
	}

	m.executions.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.latency.Record(ctx, float64(duration.Milliseconds()), metric.WithAttributes(attrs...))

	if err != nil {
		m.errors.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
}

// RecordEventRetry records a scheduled retry.
func (m *otelMetrics) RecordEventRetry(ctx context.Context, debugKey string, attempt int) {
	m.retries.Add(ctx, 1, metric.WithAttributes(
		attribute.String("debug_key", debugKey),
		attribute.Int("attempt", attempt),
	))
}

// RecordEventCancelled records a cancellation.
func (m *otelMetrics) RecordEventCancelled(ctx context.Context, debugKey, reason string) {
	m.cancels.Add(ctx, 1, metric.WithAttributes(
		attribute.String("debug_key", debugKey),
		attribute.String("reason", reason),
	))
}

// RecordEventDropped records a backpressure drop.
func (m *otelMetrics) RecordEventDropped(ctx context.Context, policy string) {
	m.drops.Add(ctx, 1, metric.WithAttributes(attribute.String("policy", policy)))
}
