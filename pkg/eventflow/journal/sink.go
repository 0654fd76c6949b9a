package journal

import (
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/randalmurphal/eventflow/pkg/eventflow"
)

// maxDetail bounds the stored rendering of completion data.
const maxDetail = 256

// Sink is an eventflow.Logger that appends lifecycle records to a Store.
// Store failures go to the error handler and never affect scheduling.
type Sink struct {
	store   Store
	runID   string
	onError func(error)
}

var (
	_ eventflow.Logger      = (*Sink)(nil)
	_ eventflow.RetryLogger = (*Sink)(nil)
)

// SinkOption configures a Sink.
type SinkOption func(*Sink)

// WithErrorHandler receives append failures. Default: discard.
func WithErrorHandler(fn func(error)) SinkOption {
	return func(s *Sink) {
		s.onError = fn
	}
}

// NewSink creates a sink tagging every record with runID.
// An empty runID generates one.
func NewSink(store Store, runID string, opts ...SinkOption) *Sink {
	if runID == "" {
		runID = uuid.NewString()
	}
	s := &Sink{store: store, runID: runID}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RunID returns the run identifier attached to records.
func (s *Sink) RunID() string {
	return s.runID
}

// LogQueued implements eventflow.Logger.
func (s *Sink) LogQueued(e eventflow.Event) {
	s.append(e, KindQueued, "")
}

// LogStarted implements eventflow.Logger.
func (s *Sink) LogStarted(e eventflow.Event) {
	s.append(e, KindStarted, "")
}

// LogCompleted implements eventflow.Logger.
func (s *Sink) LogCompleted(e eventflow.Event, data any) {
	detail := ""
	if data != nil {
		detail = truncate(fmt.Sprint(data), maxDetail)
	}
	s.append(e, KindCompleted, detail)
}

// LogError implements eventflow.Logger.
func (s *Sink) LogError(e eventflow.Event, err error) {
	detail := ""
	if err != nil {
		detail = err.Error()
	}
	s.append(e, KindError, detail)
}

// LogCancelled implements eventflow.Logger.
func (s *Sink) LogCancelled(e eventflow.Event, reason string) {
	s.append(e, KindCancelled, reason)
}

// LogRetry implements eventflow.RetryLogger.
func (s *Sink) LogRetry(e eventflow.Event, attempt int, delay time.Duration, err error) {
	detail := fmt.Sprintf("retry %d in %s", attempt, delay)
	if err != nil {
		detail += ": " + err.Error()
	}
	s.append(e, KindRetry, detail)
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func (s *Sink) append(e eventflow.Event, kind Kind, detail string) {
	r := Record{
		RunID:    s.runID,
		EventID:  e.ID(),
		DebugKey: e.DebugKey(),
		Kind:     kind,
		Detail:   detail,
	}
	if a, ok := e.(interface{ Attempt() int }); ok {
		r.Attempt = a.Attempt()
	}
	if _, err := s.store.Append(r); err != nil && s.onError != nil {
		s.onError(fmt.Errorf("journal %s %s: %w", kind, r.EventID, err))
	}
}
