package eventflow

import (
	"fmt"
	"time"
)

// State is the lifecycle state of an event.
// The concrete types are Queued, Paused, Started, Progress, Retry,
// Complete, Cancel and Failed.
type State interface {
	isState()
	String() string
}

// Queued means the event is waiting in a manager queue.
type Queued struct{}

// Paused means the event keeps its queue position but will not be started.
type Paused struct{}

// Started means the event's work is running.
type Started struct{}

// Progress is reported by running work through ReportProgress.
type Progress struct {
	Value   float64
	Message string
}

// Retry means a failed attempt will be re-run after Delay.
// Attempt is the 1-based number of the upcoming retry.
type Retry struct {
	Attempt int
	Delay   time.Duration
}

// Complete is the successful terminal state.
type Complete struct {
	Data any
}

// Cancel is the terminal state of a cancelled event.
// A non-retriable cancel makes later submissions no-ops.
type Cancel struct {
	Reason    string
	Retriable bool
}

// Failed is the terminal state of an event whose work returned an error
// and whose retry policy declined another attempt.
type Failed struct {
	Err *EventError
}

func (Queued) isState() {}
func (Paused) isState() {}
func (Started) isState() {}
func (Progress) isState() {}
func (Retry) isState() {}
func (Complete) isState() {}
func (Cancel) isState() {}
func (Failed) isState() {}

func (Queued) String() string { return "queued" }
func (Paused) String() string { return "paused" }
func (Started) String() string { return "started" }

func (s Progress) String() string {
	if s.Message == "" {
		return fmt.Sprintf("progress(%.2f)", s.Value)
	}
	return fmt.Sprintf("progress(%.2f, %s)", s.Value, s.Message)
}

func (s Retry) String() string {
	return fmt.Sprintf("retry(%d, %s)", s.Attempt, s.Delay)
}

func (Complete) String() string { return "complete" }

func (s Cancel) String() string {
	return fmt.Sprintf("cancel(%s)", s.Reason)
}

func (s Failed) String() string {
	if s.Err == nil {
		return "error"
	}
	return fmt.Sprintf("error(%v)", s.Err.Err)
}

// IsTerminal reports whether s is Complete, Cancel or Failed.
func IsTerminal(s State) bool {
	switch s.(type) {
	case Complete, Cancel, Failed:
		return true
	default:
		return false
	}
}

// isInFlight reports whether s belongs to a live submission.
func isInFlight(s State) bool {
	switch s.(type) {
	case Queued, Paused, Started, Progress, Retry:
		return true
	default:
		return false
	}
}

// StateName returns the short name of s, or "detached" for nil.
func StateName(s State) string {
	switch s.(type) {
	case nil:
		return "detached"
	case Queued:
		return "queued"
	case Paused:
		return "paused"
	case Started:
		return "started"
	case Progress:
		return "progress"
	case Retry:
		return "retry"
	case Complete:
		return "complete"
	case Cancel:
		return "cancel"
	case Failed:
		return "error"
	default:
		return "unknown"
	}
}
