package eventflow

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"strings"
	"time"

	"github.com/randalmurphal/eventflow/pkg/eventflow/observability"
)

// Mode selects how the manager drains its queue.
// The concrete modes are Sequential, Concurrent and RateLimited.
type Mode interface {
	isMode()
	String() string
}

// Sequential runs one event at a time, in priority order.
type Sequential struct{}

// Concurrent runs up to MaxConcurrency events at once. Zero means unlimited.
type Concurrent struct {
	MaxConcurrency int
}

// RateLimited starts at most Limit events in any rolling Window.
// Started events run concurrently.
type RateLimited struct {
	Limit  int
	Window time.Duration
}

func (Sequential) isMode() {}
func (Concurrent) isMode() {}
func (RateLimited) isMode() {}

func (Sequential) String() string { return "sequential" }

func (m Concurrent) String() string {
	if m.MaxConcurrency <= 0 {
		return "concurrent(unlimited)"
	}
	return fmt.Sprintf("concurrent(%d)", m.MaxConcurrency)
}

func (m RateLimited) String() string {
	return fmt.Sprintf("rate_limited(%d/%s)", m.Limit, m.Window)
}

// OverflowPolicy decides what happens when a bounded queue is full.
type OverflowPolicy int

const (
	// DropNewest rejects the incoming event. AddEventToQueue returns nil, nil.
	DropNewest OverflowPolicy = iota
	// DropOldest cancels and evicts the longest-queued event.
	DropOldest
	// OverflowError rejects the incoming event with *QueueOverflowError.
	OverflowError
)

// String returns the configuration name of the policy.
func (p OverflowPolicy) String() string {
	switch p {
	case DropNewest:
		return "drop_newest"
	case DropOldest:
		return "drop_oldest"
	case OverflowError:
		return "error"
	default:
		return "unknown"
	}
}

// ParseOverflowPolicy parses a configuration name. Matching ignores case,
// dashes and underscores, so "dropOldest" and "drop-oldest" both work.
func ParseOverflowPolicy(s string) (OverflowPolicy, error) {
	norm := strings.NewReplacer("_", "", "-", "").Replace(strings.ToLower(s))
	switch norm {
	case "", "dropnewest":
		return DropNewest, nil
	case "dropoldest":
		return DropOldest, nil
	case "error":
		return OverflowError, nil
	default:
		return DropNewest, fmt.Errorf("unknown overflow policy %q", s)
	}
}

const (
	defaultMaxBatchSize = 50
	defaultFrameBudget  = 16 * time.Millisecond
)

// managerConfig holds manager configuration.
type managerConfig struct {
	mode           Mode
	maxBatchSize   int
	frameBudget    time.Duration
	maxQueueSize   int
	overflowPolicy OverflowPolicy
	history        *UndoRedoManager
	logger         Logger
	slog           *slog.Logger
	metrics        observability.MetricsRecorder
	spans          observability.SpanManager
	clock          Clock
	baseCtx        context.Context
	// yield is called when a sequential drain tick ends.
	yield          func()
}

// defaultManagerConfig returns the default manager configuration.
func defaultManagerConfig() managerConfig {
	return managerConfig{
		mode:         Sequential{},
		maxBatchSize: defaultMaxBatchSize,
		frameBudget:  defaultFrameBudget,
		logger:       NopLogger{},
		metrics:      observability.NoopMetrics{},
		spans:        observability.NoopSpanManager{},
		clock:        RealClock{},
		baseCtx:      context.Background(),
		yield:        runtime.Gosched,
	}
}

// ManagerOption configures a Manager.
type ManagerOption func(*managerConfig)

// WithMode sets the scheduling mode.
// Default: Sequential{}
//
// Invalid modes (negative concurrency, non-positive rate limit or window)
// are ignored.
func WithMode(mode Mode) ManagerOption {
	return func(c *managerConfig) {
		switch m := mode.(type) {
		case Sequential:
			c.mode = m
		case Concurrent:
			if m.MaxConcurrency >= 0 {
				c.mode = m
			}
		case RateLimited:
			if m.Limit > 0 && m.Window > 0 {
				c.mode = m
			}
		}
	}
}

// WithMaxBatchSize bounds how many events Sequential mode runs per tick.
// Default: 50
func WithMaxBatchSize(n int) ManagerOption {
	return func(c *managerConfig) {
		if n > 0 {
			c.maxBatchSize = n
		}
	}
}

// WithFrameBudget ends a Sequential tick early once it has run for d.
// Zero disables the budget. Default: 16ms
func WithFrameBudget(d time.Duration) ManagerOption {
	return func(c *managerConfig) {
		if d >= 0 {
			c.frameBudget = d
		}
	}
}

// WithMaxQueueSize bounds the queue and sets the overflow policy.
// Zero means unbounded (the default).
//
// Example:
//
//	m := eventflow.NewManager(eventflow.WithMaxQueueSize(100, eventflow.DropOldest))
func WithMaxQueueSize(n int, policy OverflowPolicy) ManagerOption {
	return func(c *managerConfig) {
		if n >= 0 {
			c.maxQueueSize = n
			c.overflowPolicy = policy
		}
	}
}

// WithHistory records successful undoable events in h.
func WithHistory(h *UndoRedoManager) ManagerOption {
	return func(c *managerConfig) {
		c.history = h
	}
}

// WithLogger sets the lifecycle logger.
// Default: NopLogger{}
func WithLogger(l Logger) ManagerOption {
	return func(c *managerConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithSlogLogger logs the lifecycle through l and exposes an enriched copy
// to event work via LoggerFromContext.
//
// Example:
//
//	m := eventflow.NewManager(eventflow.WithSlogLogger(slog.Default()))
func WithSlogLogger(l *slog.Logger) ManagerOption {
	return func(c *managerConfig) {
		if l != nil {
			c.slog = l
			c.logger = NewSlogLogger(l)
		}
	}
}

// WithMetrics enables OpenTelemetry metrics.
// Default: disabled (NoopMetrics)
//
// Example:
//
//	m := eventflow.NewManager(eventflow.WithMetrics(observability.NewMetricsRecorder()))
func WithMetrics(r observability.MetricsRecorder) ManagerOption {
	return func(c *managerConfig) {
		if r != nil {
			c.metrics = r
		}
	}
}

// WithSpanManager enables tracing, one span per execution attempt.
// Default: disabled (NoopSpanManager)
func WithSpanManager(s observability.SpanManager) ManagerOption {
	return func(c *managerConfig) {
		if s != nil {
			c.spans = s
		}
	}
}

// WithClock overrides the clock used for timers and the rate-limit window.
func WithClock(clock Clock) ManagerOption {
	return func(c *managerConfig) {
		if clock != nil {
			c.clock = clock
		}
	}
}

// WithBaseContext sets the parent of every run context.
// Default: context.Background()
func WithBaseContext(ctx context.Context) ManagerOption {
	return func(c *managerConfig) {
		if ctx != nil {
			c.baseCtx = ctx
		}
	}
}
