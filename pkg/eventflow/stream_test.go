package eventflow

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// streamRecorder collects stream callbacks.
type streamRecorder struct {
	mu    sync.Mutex
	done  []any
	errs  []error
	ended int
}

func (r *streamRecorder) options(cancelOnError bool) StreamOptions {
	return StreamOptions{
		OnDone: func(_ Event, data any) {
			r.mu.Lock()
			r.done = append(r.done, data)
			r.mu.Unlock()
		},
		OnStreamError: func(err error) {
			r.mu.Lock()
			r.errs = append(r.errs, err)
			r.mu.Unlock()
		},
		OnStreamDone: func() {
			r.mu.Lock()
			r.ended++
			r.mu.Unlock()
		},
		CancelOnError: cancelOnError,
	}
}

func (r *streamRecorder) snapshot() ([]any, []error, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]any(nil), r.done...), append([]error(nil), r.errs...), r.ended
}

func waitDone(t *testing.T, sub *StreamSubscription) {
	t.Helper()
	select {
	case <-sub.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("stream did not end")
	}
}

func TestStream_SubmitsUntilClosed(t *testing.T) {
	m := newTestManager(t)
	rec := &streamRecorder{}
	src := make(chan StreamItem)

	sub := m.AddEventStream(src, rec.options(false))
	for i := 0; i < 3; i++ {
		src <- StreamItem{Event: valueEvent(i)}
	}
	close(src)
	waitDone(t, sub)

	done, errs, ended := rec.snapshot()
	assert.Equal(t, []any{0, 1, 2}, done)
	assert.Empty(t, errs)
	assert.Equal(t, 1, ended)
}

func TestStream_ErrorsContinueByDefault(t *testing.T) {
	m := newTestManager(t)
	rec := &streamRecorder{}
	src := make(chan StreamItem, 3)
	src <- StreamItem{Err: errors.New("bad item")}
	src <- StreamItem{Event: valueEvent("after")}
	close(src)

	sub := m.AddEventStream(src, rec.options(false))
	waitDone(t, sub)

	done, errs, _ := rec.snapshot()
	assert.Equal(t, []any{"after"}, done)
	require.Len(t, errs, 1)
}

func TestStream_CancelOnError(t *testing.T) {
	m := newTestManager(t)
	rec := &streamRecorder{}
	src := make(chan StreamItem, 3)
	src <- StreamItem{Err: errors.New("bad item")}
	src <- StreamItem{Event: valueEvent("never")}

	sub := m.AddEventStream(src, rec.options(true))
	waitDone(t, sub)

	done, errs, ended := rec.snapshot()
	assert.Empty(t, done)
	assert.Len(t, errs, 1)
	assert.Equal(t, 1, ended)
}

func TestStream_Cancel(t *testing.T) {
	m := newTestManager(t)
	rec := &streamRecorder{}
	src := make(chan StreamItem)

	sub := m.AddEventStream(src, rec.options(false))
	sub.Cancel()
	sub.Cancel()
	waitDone(t, sub)

	_, _, ended := rec.snapshot()
	assert.Equal(t, 1, ended)
}

func TestStream_EndsOnDispose(t *testing.T) {
	m := NewManager()
	rec := &streamRecorder{}
	src := make(chan StreamItem)

	sub := m.AddEventStream(src, rec.options(false))
	m.Dispose()
	waitDone(t, sub)

	_, _, ended := rec.snapshot()
	assert.Equal(t, 1, ended)
}

func TestStream_OverflowReported(t *testing.T) {
	m := newTestManager(t, WithMaxQueueSize(1, OverflowError))
	m.PauseEvents()
	rec := &streamRecorder{}
	src := make(chan StreamItem, 2)
	src <- StreamItem{Event: valueEvent(1)}
	src <- StreamItem{Event: valueEvent(2)}
	close(src)

	sub := m.AddEventStream(src, rec.options(true))
	waitDone(t, sub)

	_, errs, _ := rec.snapshot()
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], ErrQueueOverflow)
	assert.Equal(t, 1, m.QueueLength())
}
