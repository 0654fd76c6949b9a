package eventflow

import (
	"context"
	"errors"
	"sync"
)

// Future is the result handle of one submission of an event.
// It resolves exactly once, when the event reaches a terminal state.
type Future struct {
	once  sync.Once
	done  chan struct{}
	state State
}

func newFuture() *Future {
	return &Future{done: make(chan struct{})}
}

// resolve records the terminal state. Later calls are ignored.
func (f *Future) resolve(s State) {
	f.once.Do(func() {
		f.state = s
		close(f.done)
	})
}

// Done is closed when the event settles.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// State returns the terminal state, or nil while unresolved.
func (f *Future) State() State {
	select {
	case <-f.done:
		return f.state
	default:
		return nil
	}
}

// Resolved reports whether the event has settled.
func (f *Future) Resolved() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// Wait blocks until the event settles or ctx is done.
// It returns the Complete data, the *EventError of a Failed event,
// or a *CancelError for a cancelled one.
func (f *Future) Wait(ctx context.Context) (any, error) {
	select {
	case <-f.done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	switch s := f.state.(type) {
	case Complete:
		return s.Data, nil
	case Failed:
		if s.Err == nil {
			return nil, &EventError{Err: errors.New("unknown failure")}
		}
		return nil, s.Err
	case Cancel:
		return nil, &CancelError{Reason: s.Reason, Retriable: s.Retriable}
	default:
		return nil, nil
	}
}
