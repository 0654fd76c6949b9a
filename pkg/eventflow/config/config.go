package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/randalmurphal/eventflow/pkg/eventflow/retry"
)

// Scheduling modes.
const (
	ModeSequential  = "sequential"
	ModeConcurrent  = "concurrent"
	ModeRateLimited = "rate_limited"
)

// Journal drivers.
const (
	DriverNone   = "none"
	DriverMemory = "memory"
	DriverSQLite = "sqlite"
)

// Backoff kinds.
const (
	BackoffConstant    = "constant"
	BackoffLinear      = "linear"
	BackoffExponential = "exponential"
)

// ErrInvalidConfig is wrapped by every Validate error.
var ErrInvalidConfig = errors.New("invalid config")

// Config is the scheduler configuration.
type Config struct {
	Mode           string        `yaml:"mode" json:"mode"`
	MaxConcurrency int           `yaml:"max_concurrency" json:"max_concurrency"`
	RateLimit      int           `yaml:"rate_limit" json:"rate_limit"`
	RateWindow     time.Duration `yaml:"rate_window" json:"rate_window"`
	MaxBatchSize   int           `yaml:"max_batch_size" json:"max_batch_size"`
	FrameBudget    time.Duration `yaml:"frame_budget" json:"frame_budget"`
	MaxQueueSize   int           `yaml:"max_queue_size" json:"max_queue_size"`
	OverflowPolicy string        `yaml:"overflow_policy" json:"overflow_policy"`
	MaxHistorySize int           `yaml:"max_history_size" json:"max_history_size"`
	LogLevel       string        `yaml:"log_level" json:"log_level"`
	Retry          RetryConfig   `yaml:"retry" json:"retry"`
	Journal        JournalConfig `yaml:"journal" json:"journal"`
}

// RetryConfig describes the default retry policy for submitted work.
type RetryConfig struct {
	MaxAttempts int           `yaml:"max_attempts" json:"max_attempts"`
	Backoff     string        `yaml:"backoff" json:"backoff"`
	Initial     time.Duration `yaml:"initial" json:"initial"`
	Increment   time.Duration `yaml:"increment" json:"increment"`
	Factor      float64       `yaml:"factor" json:"factor"`
	Max         time.Duration `yaml:"max" json:"max"`
	Jitter      float64       `yaml:"jitter" json:"jitter"`
}

// JournalConfig selects where lifecycle records are stored.
type JournalConfig struct {
	Driver string `yaml:"driver" json:"driver"`
	Path   string `yaml:"path" json:"path"`
}

// Default returns the default configuration: a sequential manager with an
// unbounded queue, no history, no retries and no journal.
func Default() Config {
	return Config{
		Mode:           ModeSequential,
		MaxBatchSize:   50,
		FrameBudget:    16 * time.Millisecond,
		OverflowPolicy: "drop_newest",
		LogLevel:       "info",
		Retry: RetryConfig{
			Backoff: BackoffExponential,
			Initial: 100 * time.Millisecond,
			Factor:  2,
			Max:     30 * time.Second,
		},
		Journal: JournalConfig{Driver: DriverNone},
	}
}

// New builds a Config from a decoded YAML/JSON object, starting from Default.
func New(data map[string]any) Config {
	v := values(data)
	cfg := Default()

	cfg.Mode = strings.ToLower(v.str("mode", cfg.Mode))
	cfg.MaxConcurrency = v.integer("max_concurrency", cfg.MaxConcurrency)
	cfg.RateLimit = v.integer("rate_limit", cfg.RateLimit)
	cfg.RateWindow = v.duration("rate_window", cfg.RateWindow)
	cfg.MaxBatchSize = v.integer("max_batch_size", cfg.MaxBatchSize)
	cfg.FrameBudget = v.duration("frame_budget", cfg.FrameBudget)
	cfg.MaxQueueSize = v.integer("max_queue_size", cfg.MaxQueueSize)
	cfg.OverflowPolicy = v.str("overflow_policy", cfg.OverflowPolicy)
	cfg.MaxHistorySize = v.integer("max_history_size", cfg.MaxHistorySize)
	cfg.LogLevel = strings.ToLower(v.str("log_level", cfg.LogLevel))

	r := v.section("retry")
	cfg.Retry.MaxAttempts = r.integer("max_attempts", cfg.Retry.MaxAttempts)
	cfg.Retry.Backoff = strings.ToLower(r.str("backoff", cfg.Retry.Backoff))
	cfg.Retry.Initial = r.duration("initial", cfg.Retry.Initial)
	cfg.Retry.Increment = r.duration("increment", cfg.Retry.Increment)
	cfg.Retry.Factor = r.float("factor", cfg.Retry.Factor)
	cfg.Retry.Max = r.duration("max", cfg.Retry.Max)
	cfg.Retry.Jitter = r.float("jitter", cfg.Retry.Jitter)

	j := v.section("journal")
	cfg.Journal.Driver = strings.ToLower(j.str("driver", cfg.Journal.Driver))
	cfg.Journal.Path = j.str("path", cfg.Journal.Path)

	return cfg
}

// Validate reports every out-of-range value, joined, each wrapping ErrInvalidConfig.
func (c Config) Validate() error {
	var errs []error
	bad := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalidConfig}, args...)...))
	}

	switch c.Mode {
	case ModeSequential:
	case ModeConcurrent:
		if c.MaxConcurrency < 0 {
			bad("max_concurrency must be >= 0, got %d", c.MaxConcurrency)
		}
	case ModeRateLimited:
		if c.RateLimit <= 0 {
			bad("rate_limit must be > 0, got %d", c.RateLimit)
		}
		if c.RateWindow <= 0 {
			bad("rate_window must be > 0, got %s", c.RateWindow)
		}
	default:
		bad("unknown mode %q", c.Mode)
	}

	if c.MaxBatchSize <= 0 {
		bad("max_batch_size must be > 0, got %d", c.MaxBatchSize)
	}
	if c.FrameBudget < 0 {
		bad("frame_budget must be >= 0, got %s", c.FrameBudget)
	}
	if c.MaxQueueSize < 0 {
		bad("max_queue_size must be >= 0, got %d", c.MaxQueueSize)
	}
	if !validOverflowPolicy(c.OverflowPolicy) {
		bad("unknown overflow_policy %q", c.OverflowPolicy)
	}
	if c.MaxHistorySize < 0 {
		bad("max_history_size must be >= 0, got %d", c.MaxHistorySize)
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		bad("unknown log_level %q", c.LogLevel)
	}

	if c.Retry.MaxAttempts < 0 {
		bad("retry.max_attempts must be >= 0, got %d", c.Retry.MaxAttempts)
	}
	switch c.Retry.Backoff {
	case BackoffConstant, BackoffLinear, BackoffExponential:
	default:
		bad("unknown retry.backoff %q", c.Retry.Backoff)
	}
	if c.Retry.Jitter < 0 || c.Retry.Jitter > 1 {
		bad("retry.jitter must be within [0, 1], got %g", c.Retry.Jitter)
	}

	switch c.Journal.Driver {
	case DriverNone, DriverMemory:
	case DriverSQLite:
		if c.Journal.Path == "" {
			bad("journal.path is required for the sqlite driver")
		}
	default:
		bad("unknown journal.driver %q", c.Journal.Driver)
	}

	return errors.Join(errs...)
}

func validOverflowPolicy(s string) bool {
	switch strings.NewReplacer("_", "", "-", "").Replace(strings.ToLower(s)) {
	case "dropnewest", "dropoldest", "error":
		return true
	default:
		return false
	}
}

// Policy builds the retry policy. It returns nil when MaxAttempts is zero.
func (r RetryConfig) Policy() *retry.Policy {
	if r.MaxAttempts <= 0 {
		return nil
	}
	var b retry.Backoff
	switch r.Backoff {
	case BackoffConstant:
		b = retry.Constant(r.Initial)
	case BackoffLinear:
		b = retry.Linear(r.Initial, r.Increment, r.Max)
	default:
		b = retry.Exponential(r.Initial, r.Factor, r.Max)
	}
	if r.Jitter > 0 {
		b = retry.Jittered(b, r.Jitter)
	}
	return retry.NewPolicy(retry.WithMaxAttempts(r.MaxAttempts), retry.WithBackoff(b))
}

// Map returns the configuration as a plain object with duration strings,
// suitable for YAML or JSON output.
func (c Config) Map() map[string]any {
	return map[string]any{
		"mode":             c.Mode,
		"max_concurrency":  c.MaxConcurrency,
		"rate_limit":       c.RateLimit,
		"rate_window":      c.RateWindow.String(),
		"max_batch_size":   c.MaxBatchSize,
		"frame_budget":     c.FrameBudget.String(),
		"max_queue_size":   c.MaxQueueSize,
		"overflow_policy":  c.OverflowPolicy,
		"max_history_size": c.MaxHistorySize,
		"log_level":        c.LogLevel,
		"retry": map[string]any{
			"max_attempts": c.Retry.MaxAttempts,
			"backoff":      c.Retry.Backoff,
			"initial":      c.Retry.Initial.String(),
			"increment":    c.Retry.Increment.String(),
			"factor":       c.Retry.Factor,
			"max":          c.Retry.Max.String(),
			"jitter":       c.Retry.Jitter,
		},
		"journal": map[string]any{
			"driver": c.Journal.Driver,
			"path":   c.Journal.Path,
		},
	}
}
