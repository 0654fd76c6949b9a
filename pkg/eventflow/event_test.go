package eventflow

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/eventflow/pkg/eventflow/retry"
)

func TestEvent_Options(t *testing.T) {
	tok := NewToken()
	policy := &retry.Policy{MaxAttempts: 2}
	e := valueEvent(1,
		WithPriority(7),
		WithDebugKey("save"),
		WithToken(tok),
		WithTimeout(time.Second),
		WithRetryPolicy(policy),
	)

	assert.Equal(t, 7, e.Priority())
	assert.Equal(t, "save", e.DebugKey())
	assert.Same(t, tok, e.Token())
	assert.Equal(t, time.Second, e.Timeout())
	assert.Same(t, policy, e.RetryPolicy())
	assert.Nil(t, e.State())
	assert.Nil(t, e.Future())
}

func TestEvent_IDStable(t *testing.T) {
	e := valueEvent(1)
	id := e.ID()
	assert.NotEmpty(t, id)
	assert.Equal(t, id, e.ID())
	assert.NotEqual(t, id, valueEvent(1).ID())
}

func TestEvent_CancelBeforeSubmit(t *testing.T) {
	m := newTestManager(t)
	e := valueEvent(1)

	e.Cancel("never", false)
	assert.Equal(t, Cancel{Reason: "never", Retriable: false}, e.State())
	assert.False(t, e.CanRetry())

	fut, err := m.AddEventToQueue(e)
	require.NoError(t, err)
	assert.Nil(t, fut)
}

func TestEvent_CancelTerminalIsNoop(t *testing.T) {
	m := newTestManager(t)
	e := valueEvent(1)

	fut, err := m.AddEventToQueue(e)
	require.NoError(t, err)
	require.True(t, fut.Resolved())

	e.Cancel("late", false)
	assert.Equal(t, Complete{Data: 1}, e.State())
	assert.True(t, e.CanRetry())
}

func TestEvent_PauseWhileQueued(t *testing.T) {
	m := newTestManager(t)
	m.PauseEvents()
	e := valueEvent(1)
	_, err := m.AddEventToQueue(e)
	require.NoError(t, err)

	e.Pause()
	assert.Equal(t, Paused{}, e.State())
	assert.True(t, e.IsPaused())
	assert.False(t, e.CanRetry())

	e.Resume()
	assert.Equal(t, Queued{}, e.State())
}

func TestEvent_ListenDetachesAfterTerminal(t *testing.T) {
	m := newTestManager(t)
	e := valueEvent("ok")

	var states []string
	e.Listen(Listener{
		OnQueue: func() { states = append(states, "queue") },
		OnStart: func() { states = append(states, "start") },
		OnDone:  func(data any) { states = append(states, "done:"+data.(string)) },
	})

	_, err := m.AddEventToQueue(e)
	require.NoError(t, err)
	_, err = m.AddEventToQueue(e)
	require.NoError(t, err)

	assert.Equal(t, []string{"queue", "start", "done:ok"}, states)
}

func TestEvent_ListenStop(t *testing.T) {
	m := newTestManager(t)
	e := valueEvent(1)
	called := false
	stop := e.Listen(Listener{OnDone: func(any) { called = true }})
	stop()

	_, err := m.AddEventToQueue(e)
	require.NoError(t, err)
	assert.False(t, called)
}

func TestUndoableFuncEvent(t *testing.T) {
	captured := 0
	e := NewUndoableEvent(func(ctx context.Context) (any, error) {
		return nil, nil
	}, nil).OnCapture(func(*Manager) { captured++ })

	e.CaptureState(nil)
	assert.Equal(t, 1, captured)
	assert.NoError(t, e.Undo(nil))
}
