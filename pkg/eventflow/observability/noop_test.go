package observability

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNoopMetrics(t *testing.T) {
	var m MetricsRecorder = NoopMetrics{}
	ctx := context.Background()
	assert.NotPanics(t, func() {
		m.RecordEventQueued(ctx, "k", 1)
		m.RecordEventExecution(ctx, "k", time.Millisecond, errors.New("x"))
		m.RecordEventRetry(ctx, "k", 1)
		m.RecordEventCancelled(ctx, "k", "r")
		m.RecordEventDropped(ctx, "dropNewest")
	})
}

func TestNoopSpanManager(t *testing.T) {
	var sm SpanManager = NoopSpanManager{}
	ctx := context.Background()

	got, span := sm.StartEventSpan(ctx, "e", "k", 0)
	assert.Equal(t, ctx, got)
	assert.False(t, span.IsRecording())
	assert.NotPanics(t, func() {
		sm.AddSpanEvent(ctx, "x")
		sm.EndSpanWithError(span, errors.New("x"))
	})
}
