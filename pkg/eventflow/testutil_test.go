package eventflow

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// waitCtx returns a context that bounds blocking waits in tests.
func waitCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// newTestManager creates a manager disposed at test cleanup.
func newTestManager(t *testing.T, opts ...ManagerOption) *Manager {
	t.Helper()
	m := NewManager(opts...)
	t.Cleanup(m.Dispose)
	return m
}

// valueEvent returns an event that completes with v.
func valueEvent(v any, opts ...EventOption) *FuncEvent {
	return NewEvent(func(ctx context.Context) (any, error) {
		return v, nil
	}, opts...)
}

// failingEvent returns an event that fails with err.
func failingEvent(err error, opts ...EventOption) *FuncEvent {
	return NewEvent(func(ctx context.Context) (any, error) {
		return nil, err
	}, opts...)
}

// blockingEvent returns an event that signals started and then waits for
// release or cancellation.
func blockingEvent(started chan<- struct{}, release <-chan struct{}, opts ...EventOption) *FuncEvent {
	return NewEvent(func(ctx context.Context) (any, error) {
		if started != nil {
			started <- struct{}{}
		}
		select {
		case <-release:
			return "released", nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}, opts...)
}

// tracker records the order in which events ran.
type tracker struct {
	mu  sync.Mutex
	ran []string
}

func (tr *tracker) event(name string, opts ...EventOption) *FuncEvent {
	opts = append([]EventOption{WithDebugKey(name)}, opts...)
	return NewEvent(func(ctx context.Context) (any, error) {
		tr.mu.Lock()
		tr.ran = append(tr.ran, name)
		tr.mu.Unlock()
		return name, nil
	}, opts...)
}

func (tr *tracker) order() []string {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	return append([]string(nil), tr.ran...)
}

// recordingLogger captures lifecycle notifications.
type recordingLogger struct {
	mu      sync.Mutex
	entries []string
}

func (l *recordingLogger) add(kind string, e Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, kind+":"+e.DebugKey())
}

func (l *recordingLogger) LogQueued(e Event) { l.add("queued", e) }
func (l *recordingLogger) LogStarted(e Event) { l.add("started", e) }
func (l *recordingLogger) LogCompleted(e Event, _ any) { l.add("completed", e) }
func (l *recordingLogger) LogError(e Event, _ error) { l.add("error", e) }
func (l *recordingLogger) LogCancelled(e Event, _ string) { l.add("cancelled", e) }
func (l *recordingLogger) LogRetry(e Event, _ int, _ time.Duration, _ error) {
	l.add("retry", e)
}

func (l *recordingLogger) all() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.entries...)
}

// fakeClock advances by step on every Now call. Its timers fire only
// when a test calls fire.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	step   time.Duration
	timers []*fakeTimer
}

func newFakeClock(step time.Duration) *fakeClock {
	return &fakeClock{now: time.Unix(0, 0), step: step}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(c.step)
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{fn: f}
	c.timers = append(c.timers, t)
	return t
}

func (c *fakeClock) timerCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.timers)
}

func (c *fakeClock) timer(i int) *fakeTimer {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.timers[i]
}

type fakeTimer struct {
	fn      func()
	stopped atomic.Bool
}

func (t *fakeTimer) Stop() bool {
	return !t.stopped.Swap(true)
}

func (t *fakeTimer) fire() { t.fn() }

// countYields replaces the end-of-tick yield with a counter.
func countYields(n *atomic.Int32) ManagerOption {
	return func(c *managerConfig) {
		c.yield = func() { n.Add(1) }
	}
}
