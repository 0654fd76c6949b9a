// Package eventflow provides an in-process asynchronous work scheduler.
//
// Callers submit discrete units of work (events) to a Manager. The manager
// decides when, in what order, and with what concurrency each event runs,
// tracks its lifecycle, and supports cancellation, pause, automatic retry,
// and undo/redo of completed work.
//
// # Quick Start
//
//	m := eventflow.NewManager(eventflow.WithMode(eventflow.Concurrent{MaxConcurrency: 4}))
//	defer m.Dispose()
//
//	e := eventflow.NewEvent(func(ctx context.Context) (any, error) {
//	    return fetch(ctx)
//	}, eventflow.WithPriority(10), eventflow.WithDebugKey("fetch"))
//
//	fut, err := m.AddEventToQueue(e)
//	if err != nil {
//	    return err
//	}
//	data, err := fut.Wait(ctx)
//
// # Lifecycle
//
// An event starts detached (nil state) and becomes Queued on submission,
// Started when its work begins, and may emit Progress, Retry and Paused
// before settling in Complete, Cancel or Failed. Submitting a settled event
// resets it and runs it again, except after a non-retriable Cancel.
//
// # Scheduling Modes
//
//   - Sequential: one event at a time, in batches bounded by MaxBatchSize and FrameBudget
//   - Concurrent: up to MaxConcurrency events in flight (0 means unlimited)
//   - RateLimited: at most Limit starts in any rolling Window
//
// In Sequential mode an event submitted to an idle, unpaused manager runs
// inline on the caller's goroutine when it has no timeout and is not paused,
// so the returned Future is already resolved when AddEventToQueue returns.
//
// # Cancellation
//
// Cancellation is cooperative. The context passed to Run is cancelled, but
// work that ignores it runs to completion and its result is discarded; the
// event's terminal state stays Cancel.
//
// # Error Handling
//
// Work errors and panics settle the event as Failed with an *EventError,
// unless the event's retry policy allows another attempt. Full queues
// report *QueueOverflowError under the OverflowError policy.
//
//	fut, err := m.AddEventToQueue(e)
//	var overflow *eventflow.QueueOverflowError
//	if errors.As(err, &overflow) {
//	    log.Printf("queue full: %d/%d", overflow.QueueSize, overflow.MaxQueueSize)
//	}
package eventflow
