// Package journal records event lifecycle transitions durably.
//
// A Sink implements eventflow.Logger and appends one Record per lifecycle
// notification to a Store. MemoryStore keeps records in process;
// SQLiteStore persists them with the pure-Go modernc.org/sqlite driver.
//
//	store, err := journal.NewSQLiteStore("eventflow.db")
//	if err != nil {
//	    return err
//	}
//	defer store.Close()
//
//	sink := journal.NewSink(store, "")
//	m := eventflow.NewManager(eventflow.WithLogger(sink))
package journal

import (
	"errors"
	"time"
)

// Kind is the lifecycle transition a record describes.
type Kind string

// Record kinds.
const (
	KindQueued    Kind = "queued"
	KindStarted   Kind = "started"
	KindCompleted Kind = "completed"
	KindRetry     Kind = "retry"
	KindError     Kind = "error"
	KindCancelled Kind = "cancelled"
)

// Record is one journal entry.
type Record struct {
	// Seq is assigned by the store, increasing in append order.
	Seq       int64
	RunID     string
	EventID   string
	DebugKey  string
	Kind      Kind
	Attempt   int
	Detail    string
	Timestamp time.Time
}

// Store persists journal records.
// Implementations must be safe for concurrent use.
type Store interface {
	// Append stores r and returns it with Seq (and Timestamp, if zero) set.
	Append(r Record) (Record, error)

	// List returns the records of a run in append order.
	// An empty runID lists every run.
	List(runID string) ([]Record, error)

	// ListByEvent returns every record of one event in append order.
	ListByEvent(eventID string) ([]Record, error)

	// Count returns the number of records of a run; empty runID counts all.
	Count(runID string) (int, error)

	// Close releases resources. Later calls fail with ErrStoreClosed.
	Close() error
}

// ErrStoreClosed indicates the store has been closed.
var ErrStoreClosed = errors.New("journal store closed")

func stamp(r Record) Record {
	if r.Timestamp.IsZero() {
		r.Timestamp = time.Now().UTC()
	}
	return r
}
