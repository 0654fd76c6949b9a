// Package observability provides logging, metrics, and tracing for the
// eventflow scheduler.
//
// Features:
//   - Structured logging via slog (Go stdlib)
//   - Metrics via OpenTelemetry
//   - Tracing via OpenTelemetry
//
// All features are opt-in and have no-op implementations when disabled.
package observability

import (
	"log/slog"
	"time"
)

// EnrichLogger adds event context to a logger.
// Returns a new logger with event_id, debug_key, and attempt fields.
//
// Example:
//
//	enriched := EnrichLogger(logger, "evt-123", "save-doc", 1)
//	enriched.Info("doing work") // includes event_id, debug_key, attempt
func EnrichLogger(logger *slog.Logger, eventID, debugKey string, attempt int) *slog.Logger {
	if logger == nil {
		return nil
	}
	return logger.With(
		slog.String("event_id", eventID),
		slog.String("debug_key", debugKey),
		slog.Int("attempt", attempt),
	)
}

// LogEventQueued logs an event entering the queue.
func LogEventQueued(logger *slog.Logger, eventID, debugKey string, priority int) {
	if logger == nil {
		return
	}
	logger.Debug("event queued",
		slog.String("event_id", eventID),
		slog.String("debug_key", debugKey),
		slog.Int("priority", priority),
	)
}

// LogEventStarted logs the start of an execution attempt.
func LogEventStarted(logger *slog.Logger, eventID, debugKey string, attempt int) {
	if logger == nil {
		return
	}
	logger.Debug("event started",
		slog.String("event_id", eventID),
		slog.String("debug_key", debugKey),
		slog.Int("attempt", attempt),
	)
}

// LogEventCompleted logs successful event completion.
func LogEventCompleted(logger *slog.Logger, eventID, debugKey string, durationMs float64) {
	if logger == nil {
		return
	}
	logger.Info("event completed",
		slog.String("event_id", eventID),
		slog.String("debug_key", debugKey),
		slog.Float64("duration_ms", durationMs),
	)
}

// LogEventError logs a terminal event failure.
func LogEventError(logger *slog.Logger, eventID, debugKey string, err error) {
	if logger == nil {
		return
	}
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	logger.Error("event failed",
		slog.String("event_id", eventID),
		slog.String("debug_key", debugKey),
		slog.String("error", msg),
	)
}

// LogEventCancelled logs an event cancellation.
func LogEventCancelled(logger *slog.Logger, eventID, debugKey, reason string) {
	if logger == nil {
		return
	}
	logger.Info("event cancelled",
		slog.String("event_id", eventID),
		slog.String("debug_key", debugKey),
		slog.String("reason", reason),
	)
}

// LogEventRetry logs a scheduled retry (non-fatal).
func LogEventRetry(logger *slog.Logger, eventID, debugKey string, attempt int, delay time.Duration, err error) {
	if logger == nil {
		return
	}
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	logger.Warn("event retry scheduled",
		slog.String("event_id", eventID),
		slog.String("debug_key", debugKey),
		slog.Int("attempt", attempt),
		slog.Duration("delay", delay),
		slog.String("error", msg),
	)
}

// TimedOperation measures the duration of an operation.
// Returns a function that, when called, returns the elapsed time in milliseconds.
//
// Example:
//
//	done := TimedOperation()
//	// ... do work ...
//	durationMs := done()
func TimedOperation() func() float64 {
	start := time.Now()
	return func() float64 {
		return float64(time.Since(start).Milliseconds())
	}
}
