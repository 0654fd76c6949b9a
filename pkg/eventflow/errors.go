package eventflow

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for submission.
var (
	// ErrManagerDisposed indicates a submission to a disposed manager.
	ErrManagerDisposed = errors.New("event manager disposed")

	// ErrQueueOverflow indicates a bounded queue rejected an event.
	// Returned wrapped in *QueueOverflowError.
	ErrQueueOverflow = errors.New("event queue full")

	// ErrNoManager indicates a retry of an event that was never run by a manager.
	ErrNoManager = errors.New("event has no manager")
)

// ErrCancelled is the sentinel wrapped by *CancelError.
var ErrCancelled = errors.New("event cancelled")

// QueueOverflowError reports a submission rejected by the OverflowError policy.
type QueueOverflowError struct {
	// QueueSize is the queue length at the time of rejection.
	QueueSize int
	// MaxQueueSize is the configured capacity.
	MaxQueueSize int
	// Event is the rejected event.
	Event Event
}

// Error implements the error interface.
func (e *QueueOverflowError) Error() string {
	key := ""
	if e.Event != nil && e.Event.DebugKey() != "" {
		key = " rejecting " + e.Event.DebugKey()
	}
	return fmt.Sprintf("event queue full (%d/%d)%s", e.QueueSize, e.MaxQueueSize, key)
}

// Unwrap returns ErrQueueOverflow for errors.Is support.
func (e *QueueOverflowError) Unwrap() error {
	return ErrQueueOverflow
}

// EventError wraps the error that settled an event as Failed.
type EventError struct {
	// Event is the failed event.
	Event Event
	// Err is the error returned (or the panic recovered) from the work.
	Err error
	// Stack is the stack trace when the work panicked, empty otherwise.
	Stack string
	// Attempt is the number of executions, including the failed one.
	Attempt int

	manager *Manager
}

// Error implements the error interface.
func (e *EventError) Error() string {
	name := "event"
	if e.Event != nil {
		if key := e.Event.DebugKey(); key != "" {
			name = "event " + key
		}
	}
	return fmt.Sprintf("%s failed after %d attempt(s): %v", name, e.Attempt, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *EventError) Unwrap() error {
	return e.Err
}

// Retry resubmits the failed event to the manager that ran it.
func (e *EventError) Retry() (*Future, error) {
	if e.manager == nil || e.Event == nil {
		return nil, ErrNoManager
	}
	return e.manager.AddEventToQueue(e.Event)
}

// PanicError captures a panic raised by event work.
type PanicError struct {
	// Value is the value passed to panic().
	Value any
	// Stack is the full stack trace at the point of panic.
	Stack string
}

// Error implements the error interface.
func (e *PanicError) Error() string {
	return fmt.Sprintf("event panicked: %v", e.Value)
}

// CancelError is returned by Future.Wait when the event was cancelled.
// Cancellation is a terminal state, not a failure of the work.
type CancelError struct {
	Reason    string
	Retriable bool
}

// Error implements the error interface.
func (e *CancelError) Error() string {
	if e.Reason == "" {
		return "event cancelled"
	}
	return "event cancelled: " + e.Reason
}

// Unwrap returns ErrCancelled for errors.Is support.
func (e *CancelError) Unwrap() error {
	return ErrCancelled
}

// BatchError aggregates child failures of a BatchEvent.
type BatchError struct {
	// Events are the children that failed or never completed.
	Events []Event
	// Errors are the collected child failures, in input order.
	Errors []error

	batch   *BatchEvent
	manager *Manager
}

// Error implements the error interface.
func (e *BatchError) Error() string {
	if len(e.Errors) == 1 {
		return fmt.Sprintf("batch failed (%d pending): %v", len(e.Events), e.Errors[0])
	}
	msgs := make([]string, len(e.Errors))
	for i, err := range e.Errors {
		msgs[i] = err.Error()
	}
	return fmt.Sprintf("batch failed with %d errors (%d pending): %s",
		len(e.Errors), len(e.Events), strings.Join(msgs, "; "))
}

// Unwrap returns the child errors for errors.Is/As support.
func (e *BatchError) Unwrap() []error {
	return e.Errors
}

// Retry resubmits the batch. Children that already completed are not re-run.
func (e *BatchError) Retry() (*Future, error) {
	if e.batch == nil || e.manager == nil {
		return nil, ErrNoManager
	}
	return e.manager.AddEventToQueue(e.batch)
}
