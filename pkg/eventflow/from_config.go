package eventflow

import (
	"fmt"

	"github.com/randalmurphal/eventflow/pkg/eventflow/config"
)

// OptionsFromConfig converts a validated configuration into manager options.
// History is attached when MaxHistorySize is positive. Logging, metrics
// and journal wiring are left to the caller.
func OptionsFromConfig(cfg config.Config) ([]ManagerOption, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var mode Mode
	switch cfg.Mode {
	case config.ModeConcurrent:
		mode = Concurrent{MaxConcurrency: cfg.MaxConcurrency}
	case config.ModeRateLimited:
		mode = RateLimited{Limit: cfg.RateLimit, Window: cfg.RateWindow}
	default:
		mode = Sequential{}
	}

	policy, err := ParseOverflowPolicy(cfg.OverflowPolicy)
	if err != nil {
		return nil, fmt.Errorf("overflow policy: %w", err)
	}

	opts := []ManagerOption{
		WithMode(mode),
		WithMaxBatchSize(cfg.MaxBatchSize),
		WithFrameBudget(cfg.FrameBudget),
		WithMaxQueueSize(cfg.MaxQueueSize, policy),
	}
	if cfg.MaxHistorySize > 0 {
		opts = append(opts, WithHistory(NewUndoRedoManager(cfg.MaxHistorySize)))
	}
	return opts, nil
}
