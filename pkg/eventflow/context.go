package eventflow

import (
	"context"
	"log/slog"
)

type contextKey int

const (
	managerKey contextKey = iota
	runKey
	loggerKey
)

// runInfo identifies one attempt of an event.
type runInfo struct {
	event Event
	gen   uint64
}

// ManagerFromContext returns the manager running the current event, or nil.
func ManagerFromContext(ctx context.Context) *Manager {
	m, _ := ctx.Value(managerKey).(*Manager)
	return m
}

// EventFromContext returns the event whose work is running, or nil.
func EventFromContext(ctx context.Context) Event {
	ri, ok := ctx.Value(runKey).(runInfo)
	if !ok {
		return nil
	}
	return ri.event
}

// LoggerFromContext returns the logger enriched with the running event's
// id, debug key and attempt. Never returns nil; defaults to slog.Default().
func LoggerFromContext(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey).(*slog.Logger); ok && l != nil {
		return l
	}
	return slog.Default()
}

// ReportProgress moves the running event to Progress{value, message}.
// It is a no-op outside event work or after the attempt was cancelled.
func ReportProgress(ctx context.Context, value float64, message string) {
	ri, ok := ctx.Value(runKey).(runInfo)
	if !ok {
		return
	}
	b := ri.event.core()
	if b.settleIf(ri.gen, Progress{Value: value, Message: message}) {
		if m := ManagerFromContext(ctx); m != nil {
			m.cfg.spans.AddSpanEvent(ctx, "progress")
		}
	}
}

func withRun(ctx context.Context, m *Manager, e Event, gen uint64) context.Context {
	ctx = context.WithValue(ctx, managerKey, m)
	return context.WithValue(ctx, runKey, runInfo{event: e, gen: gen})
}

func withLogger(ctx context.Context, l *slog.Logger) context.Context {
	if l == nil {
		return ctx
	}
	return context.WithValue(ctx, loggerKey, l)
}
