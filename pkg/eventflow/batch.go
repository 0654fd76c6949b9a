package eventflow

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"
)

// ReasonBatchCancelled is the reason given to children of a cancelled batch.
const ReasonBatchCancelled = "batch cancelled"

// BatchEvent runs child events as one unit.
//
// Children run in order, or all at once when Concurrent is set. With
// EagerError the batch fails on the first child failure; otherwise every
// child runs and all failures are collected. The result is a []any in
// child order. A batch with no children is disabled and never queued.
//
// Children run through the manager that runs the batch, bypassing its
// queue. Retrying a failed batch skips children that already completed and
// reuses their results.
//
// Example:
//
//	batch := &eventflow.BatchEvent{Children: []eventflow.Event{a, b, c}, Concurrent: true}
//	fut, _ := m.AddEventToQueue(batch)
//	results, err := fut.Wait(ctx)
type BatchEvent struct {
	BaseEvent

	Children   []Event
	EagerError bool
	Concurrent bool
}

// NewBatchEvent creates a sequential, error-collecting batch.
func NewBatchEvent(children []Event, opts ...EventOption) *BatchEvent {
	b := &BatchEvent{Children: children}
	b.Apply(opts...)
	return b
}

// IsEnabled reports whether the batch has children.
func (e *BatchEvent) IsEnabled() bool {
	return len(e.Children) > 0
}

// Run executes the children and returns their results in order.
// Failures are reported as *BatchError.
func (e *BatchEvent) Run(ctx context.Context) (any, error) {
	m := ManagerFromContext(ctx)
	owned := m == nil
	if owned {
		m = NewManager()
		defer m.Dispose()
	}

	stop := context.AfterFunc(ctx, func() {
		for _, c := range e.Children {
			c.Cancel(ReasonBatchCancelled, true)
		}
	})
	defer stop()

	var (
		results []any
		errs    []error
		failed  []Event
	)
	if e.Concurrent {
		results, failed, errs = e.runConcurrent(ctx, m)
	} else {
		results, failed, errs = e.runSequential(ctx, m)
	}
	if len(errs) == 0 {
		return results, nil
	}
	if e.EagerError {
		// Concurrent siblings may still be running.
		for _, c := range e.Children {
			if isInFlight(c.State()) {
				c.Cancel(ReasonBatchCancelled, true)
			}
		}
	}

	be := &BatchError{Events: failed, Errors: errs}
	if !owned {
		be.batch = e
		be.manager = m
	}
	return nil, be
}

func (e *BatchEvent) runSequential(ctx context.Context, m *Manager) ([]any, []Event, []error) {
	results := make([]any, len(e.Children))
	var (
		errs   []error
		failed []Event
	)
	for i, c := range e.Children {
		if s, ok := c.State().(Complete); ok {
			results[i] = s.Data
			continue
		}
		data, err := runChild(ctx, m, c)
		if err != nil {
			if e.EagerError {
				return nil, e.pending(), []error{err}
			}
			errs = append(errs, err)
			failed = append(failed, c)
			continue
		}
		results[i] = data
	}
	return results, failed, errs
}

func (e *BatchEvent) runConcurrent(ctx context.Context, m *Manager) ([]any, []Event, []error) {
	n := len(e.Children)
	results := make([]any, n)
	childErrs := make([]error, n)

	var (
		firstMu  sync.Mutex
		firstErr error
	)
	g, gctx := errgroup.WithContext(ctx)
	for i, c := range e.Children {
		if s, ok := c.State().(Complete); ok {
			results[i] = s.Data
			continue
		}
		g.Go(func() error {
			if e.EagerError && gctx.Err() != nil {
				return nil
			}
			data, err := runChild(ctx, m, c)
			if err != nil {
				childErrs[i] = err
				firstMu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				firstMu.Unlock()
				if e.EagerError {
					return err
				}
				return nil
			}
			results[i] = data
			return nil
		})
	}

	waitDone := make(chan struct{})
	go func() {
		_ = g.Wait()
		close(waitDone)
	}()

	if e.EagerError {
		select {
		case <-waitDone:
		case <-gctx.Done():
		}
		firstMu.Lock()
		err := firstErr
		firstMu.Unlock()
		if err != nil {
			return nil, e.pending(), []error{err}
		}
		if ctx.Err() != nil {
			return nil, e.pending(), []error{ctx.Err()}
		}
	}
	<-waitDone

	var (
		errs   []error
		failed []Event
	)
	for i, err := range childErrs {
		if err != nil {
			errs = append(errs, err)
			failed = append(failed, e.Children[i])
		}
	}
	return results, failed, errs
}

// pending returns the children that have not completed.
func (e *BatchEvent) pending() []Event {
	var out []Event
	for _, c := range e.Children {
		if _, ok := c.State().(Complete); !ok {
			out = append(out, c)
		}
	}
	return out
}

// runChild runs c directly on m and waits for it to settle.
func runChild(ctx context.Context, m *Manager, c Event) (any, error) {
	fut, err := m.processDirect(c, true, nil, nil)
	if err != nil {
		return nil, err
	}
	if fut == nil {
		if cs, ok := c.State().(Cancel); ok {
			return nil, &CancelError{Reason: cs.Reason, Retriable: cs.Retriable}
		}
		return nil, nil
	}
	return fut.Wait(ctx)
}
