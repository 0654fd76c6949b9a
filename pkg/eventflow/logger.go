package eventflow

import (
	"log/slog"
	"sync"
	"time"

	"github.com/randalmurphal/eventflow/pkg/eventflow/observability"
)

// Logger receives lifecycle notifications from a Manager.
// Implementations must be safe for concurrent use and must not block;
// the manager never depends on them for scheduling.
type Logger interface {
	LogQueued(e Event)
	LogStarted(e Event)
	LogCompleted(e Event, data any)
	LogError(e Event, err error)
	LogCancelled(e Event, reason string)
}

// RetryLogger is implemented by loggers that also record scheduled retries.
type RetryLogger interface {
	LogRetry(e Event, attempt int, delay time.Duration, err error)
}

// NopLogger discards everything.
type NopLogger struct{}

var _ Logger = NopLogger{}

func (NopLogger) LogQueued(Event) {}
func (NopLogger) LogStarted(Event) {}
func (NopLogger) LogCompleted(Event, any) {}
func (NopLogger) LogError(Event, error) {}
func (NopLogger) LogCancelled(Event, string) {}

// slogLogger writes lifecycle records through log/slog.
type slogLogger struct {
	logger *slog.Logger
	starts sync.Map // event id -> time.Time
}

// NewSlogLogger returns a Logger backed by l. A nil l uses slog.Default().
func NewSlogLogger(l *slog.Logger) Logger {
	if l == nil {
		l = slog.Default()
	}
	return &slogLogger{logger: l}
}

func (s *slogLogger) LogQueued(e Event) {
	observability.LogEventQueued(s.logger, e.ID(), e.DebugKey(), e.Priority())
}

func (s *slogLogger) LogStarted(e Event) {
	s.starts.Store(e.ID(), time.Now())
	observability.LogEventStarted(s.logger, e.ID(), e.DebugKey(), e.core().Attempt())
}

func (s *slogLogger) LogCompleted(e Event, _ any) {
	var ms float64
	if v, ok := s.starts.LoadAndDelete(e.ID()); ok {
		ms = float64(time.Since(v.(time.Time)).Milliseconds())
	}
	observability.LogEventCompleted(s.logger, e.ID(), e.DebugKey(), ms)
}

func (s *slogLogger) LogError(e Event, err error) {
	s.starts.Delete(e.ID())
	observability.LogEventError(s.logger, e.ID(), e.DebugKey(), err)
}

func (s *slogLogger) LogCancelled(e Event, reason string) {
	s.starts.Delete(e.ID())
	observability.LogEventCancelled(s.logger, e.ID(), e.DebugKey(), reason)
}

func (s *slogLogger) LogRetry(e Event, attempt int, delay time.Duration, err error) {
	observability.LogEventRetry(s.logger, e.ID(), e.DebugKey(), attempt, delay, err)
}

// multiLogger fans out to several loggers in order.
type multiLogger []Logger

// MultiLogger returns a Logger that forwards to every non-nil logger.
func MultiLogger(loggers ...Logger) Logger {
	out := make(multiLogger, 0, len(loggers))
	for _, l := range loggers {
		if l != nil {
			out = append(out, l)
		}
	}
	return out
}

func (ml multiLogger) LogQueued(e Event) {
	for _, l := range ml {
		l.LogQueued(e)
	}
}

func (ml multiLogger) LogStarted(e Event) {
	for _, l := range ml {
		l.LogStarted(e)
	}
}

func (ml multiLogger) LogCompleted(e Event, data any) {
	for _, l := range ml {
		l.LogCompleted(e, data)
	}
}

func (ml multiLogger) LogError(e Event, err error) {
	for _, l := range ml {
		l.LogError(e, err)
	}
}

func (ml multiLogger) LogCancelled(e Event, reason string) {
	for _, l := range ml {
		l.LogCancelled(e, reason)
	}
}

func (ml multiLogger) LogRetry(e Event, attempt int, delay time.Duration, err error) {
	for _, l := range ml {
		if rl, ok := l.(RetryLogger); ok {
			rl.LogRetry(e, attempt, delay, err)
		}
	}
}
