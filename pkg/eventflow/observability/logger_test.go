package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordHandler captures log records as JSON lines.
type recordHandler struct {
	buf   *bytes.Buffer
	attrs []slog.Attr
}

func newRecordHandler() *recordHandler {
	return &recordHandler{buf: &bytes.Buffer{}}
}

func (h *recordHandler) Enabled(_ context.Context, _ slog.Level) bool { return true }

func (h *recordHandler) Handle(_ context.Context, r slog.Record) error {
	data := map[string]any{
		"level": r.Level.String(),
		"msg":   r.Message,
	}
	for _, attr := range h.attrs {
		data[attr.Key] = attr.Value.Any()
	}
	r.Attrs(func(a slog.Attr) bool {
		data[a.Key] = a.Value.Any()
		return true
	})
	return json.NewEncoder(h.buf).Encode(data)
}

func (h *recordHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	merged = append(merged, h.attrs...)
	merged = append(merged, attrs...)
	return &recordHandler{buf: h.buf, attrs: merged}
}

func (h *recordHandler) WithGroup(_ string) slog.Handler { return h }

func (h *recordHandler) last(t *testing.T) map[string]any {
	t.Helper()
	lines := bytes.Split(bytes.TrimSpace(h.buf.Bytes()), []byte("\n"))
	require.NotEmpty(t, lines)
	var rec map[string]any
	require.NoError(t, json.Unmarshal(lines[len(lines)-1], &rec))
	return rec
}

func TestEnrichLogger(t *testing.T) {
	t.Run("adds event fields", func(t *testing.T) {
		h := newRecordHandler()
		logger := EnrichLogger(slog.New(h), "evt-1", "save", 2)
		logger.Info("working")

		rec := h.last(t)
		assert.Equal(t, "working", rec["msg"])
		assert.Equal(t, "evt-1", rec["event_id"])
		assert.Equal(t, "save", rec["debug_key"])
		assert.EqualValues(t, 2, rec["attempt"])
	})

	t.Run("nil logger stays nil", func(t *testing.T) {
		assert.Nil(t, EnrichLogger(nil, "evt-1", "save", 0))
	})
}

func TestLifecycleLogging(t *testing.T) {
	tests := []struct {
		name   string
		log    func(*slog.Logger)
		level  string
		msg    string
		fields map[string]any
	}{
		{
			name:   "queued",
			log:    func(l *slog.Logger) { LogEventQueued(l, "e1", "k", 10) },
			level:  "DEBUG",
			msg:    "event queued",
			fields: map[string]any{"priority": float64(10)},
		},
		{
			name:   "started",
			log:    func(l *slog.Logger) { LogEventStarted(l, "e1", "k", 1) },
			level:  "DEBUG",
			msg:    "event started",
			fields: map[string]any{"attempt": float64(1)},
		},
		{
			name:   "completed",
			log:    func(l *slog.Logger) { LogEventCompleted(l, "e1", "k", 12.5) },
			level:  "INFO",
			msg:    "event completed",
			fields: map[string]any{"duration_ms": 12.5},
		},
		{
			name:   "error",
			log:    func(l *slog.Logger) { LogEventError(l, "e1", "k", errors.New("boom")) },
			level:  "ERROR",
			msg:    "event failed",
			fields: map[string]any{"error": "boom"},
		},
		{
			name:   "cancelled",
			log:    func(l *slog.Logger) { LogEventCancelled(l, "e1", "k", "user") },
			level:  "INFO",
			msg:    "event cancelled",
			fields: map[string]any{"reason": "user"},
		},
		{
			name:   "retry",
			log:    func(l *slog.Logger) { LogEventRetry(l, "e1", "k", 2, time.Second, errors.New("flaky")) },
			level:  "WARN",
			msg:    "event retry scheduled",
			fields: map[string]any{"attempt": float64(2), "error": "flaky"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newRecordHandler()
			tt.log(slog.New(h))

			rec := h.last(t)
			assert.Equal(t, tt.level, rec["level"])
			assert.Equal(t, tt.msg, rec["msg"])
			assert.Equal(t, "e1", rec["event_id"])
			assert.Equal(t, "k", rec["debug_key"])
			for k, v := range tt.fields {
				assert.Equal(t, v, rec[k], "field %s", k)
			}
		})
	}
}

func TestLogging_NilLogger(t *testing.T) {
	assert.NotPanics(t, func() {
		LogEventQueued(nil, "e", "k", 0)
		LogEventStarted(nil, "e", "k", 0)
		LogEventCompleted(nil, "e", "k", 0)
		LogEventError(nil, "e", "k", errors.New("x"))
		LogEventCancelled(nil, "e", "k", "r")
		LogEventRetry(nil, "e", "k", 1, time.Millisecond, nil)
	})
}

func TestTimedOperation(t *testing.T) {
	done := TimedOperation()
	time.Sleep(5 * time.Millisecond)
	assert.GreaterOrEqual(t, done(), float64(4))
}
