package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/eventflow/pkg/eventflow"
	"github.com/randalmurphal/eventflow/pkg/eventflow/config"
	"github.com/randalmurphal/eventflow/pkg/eventflow/journal"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	ConfigPath string
	Events     int
	FailEvery  int
	DBPath     string
	RunID      string
	Work       time.Duration
}

// RunSummary reports the outcome of a workload.
type RunSummary struct {
	RunID     string `json:"run_id"`
	Mode      string `json:"mode"`
	Events    int    `json:"events"`
	Completed int    `json:"completed"`
	Failed    int    `json:"failed"`
	Cancelled int    `json:"cancelled"`
	Dropped   int    `json:"dropped"`
	Records   int    `json:"journal_records"`
}

func (s RunSummary) String() string {
	var b strings.Builder
	line := func(label string, value any) {
		fmt.Fprintf(&b, "%-10s %v\n", label, value)
	}
	line("run", s.RunID)
	line("mode", s.Mode)
	line("events", s.Events)
	line("completed", s.Completed)
	line("failed", s.Failed)
	line("cancelled", s.Cancelled)
	line("dropped", s.Dropped)
	fmt.Fprintf(&b, "%-10s %d records", "journal", s.Records)
	return b.String()
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a synthetic workload",
		Long: `Submit a numbered series of events to a manager built from the
configuration file, wait for every event to settle, and print a summary.

Every lifecycle transition is journaled. With --db the journal is a SQLite
file that the history command can read back; otherwise the journal named in
the configuration is used, falling back to memory.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWorkload(cmd, rootOpts, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.ConfigPath, "config", "c", "", "configuration file (.yaml, .yml, .json)")
	cmd.Flags().IntVarP(&opts.Events, "events", "n", 10, "number of events to submit")
	cmd.Flags().IntVar(&opts.FailEvery, "fail-every", 0, "make every k-th event fail (0 disables)")
	cmd.Flags().StringVar(&opts.DBPath, "db", "", "SQLite journal path (overrides the configured journal)")
	cmd.Flags().StringVar(&opts.RunID, "run-id", "", "run identifier recorded in the journal (default: generated)")
	cmd.Flags().DurationVar(&opts.Work, "work", 0, "simulated work per event")

	return cmd
}

func runWorkload(cmd *cobra.Command, rootOpts *RootOptions, opts *RunOptions) error {
	if opts.Events < 0 || opts.FailEvery < 0 {
		return NewExitError(ExitCommandError, "--events and --fail-every must be >= 0")
	}

	cfg, err := loadConfig(opts.ConfigPath)
	if err != nil {
		return err
	}
	if opts.DBPath != "" {
		cfg.Journal = config.JournalConfig{Driver: config.DriverSQLite, Path: opts.DBPath}
	}

	managerOpts, err := eventflow.OptionsFromConfig(cfg)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid config", err)
	}

	store, err := openJournal(cfg.Journal)
	if err != nil {
		return WrapExitError(ExitCommandError, "open journal", err)
	}
	defer store.Close()

	sink := journal.NewSink(store, opts.RunID, journal.WithErrorHandler(func(err error) {
		fmt.Fprintln(cmd.ErrOrStderr(), "journal:", err)
	}))
	var logger eventflow.Logger = sink
	if rootOpts.Verbose {
		sl := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: parseLevel(cfg.LogLevel)}))
		managerOpts = append(managerOpts, eventflow.WithSlogLogger(sl))
		logger = eventflow.MultiLogger(sink, eventflow.NewSlogLogger(sl))
	}
	managerOpts = append(managerOpts, eventflow.WithLogger(logger))

	m := eventflow.NewManager(managerOpts...)
	defer m.Dispose()

	ctx := cmd.Context()
	summary := RunSummary{
		RunID:  sink.RunID(),
		Mode:   m.Mode().String(),
		Events: opts.Events,
	}

	futures := make([]*eventflow.Future, 0, opts.Events)
	for i := 1; i <= opts.Events; i++ {
		fut, err := m.AddEventToQueue(workloadEvent(i, opts, cfg))
		if err != nil {
			if errors.Is(err, eventflow.ErrQueueOverflow) {
				summary.Dropped++
				continue
			}
			return WrapExitError(ExitFailure, "submit event", err)
		}
		if fut == nil {
			summary.Dropped++
			continue
		}
		futures = append(futures, fut)
	}

	for _, fut := range futures {
		_, err := fut.Wait(ctx)
		switch {
		case err == nil:
			summary.Completed++
		case errors.Is(err, eventflow.ErrCancelled):
			summary.Cancelled++
		case ctx.Err() != nil:
			return WrapExitError(ExitFailure, "interrupted", ctx.Err())
		default:
			summary.Failed++
		}
	}
	m.Dispose()

	if summary.Records, err = store.Count(summary.RunID); err != nil {
		return WrapExitError(ExitFailure, "count journal records", err)
	}

	out := output{format: rootOpts.Format, w: cmd.OutOrStdout()}
	if summary.Failed > 0 {
		failErr := NewExitError(ExitFailure, fmt.Sprintf("%d event(s) failed", summary.Failed))
		if err := out.failure(summary, failErr); err != nil {
			return err
		}
		return failErr
	}
	return out.success(summary)
}

// workloadEvent builds the i-th synthetic event. It completes with i*i
// unless i is a multiple of FailEvery.
func workloadEvent(i int, opts *RunOptions, cfg config.Config) eventflow.Event {
	fail := opts.FailEvery > 0 && i%opts.FailEvery == 0
	return eventflow.NewEvent(func(ctx context.Context) (any, error) {
		if opts.Work > 0 {
			select {
			case <-time.After(opts.Work):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		if fail {
			return nil, fmt.Errorf("synthetic failure %d", i)
		}
		return i * i, nil
	},
		eventflow.WithDebugKey(fmt.Sprintf("event-%02d", i)),
		eventflow.WithPriority(i%3),
		eventflow.WithRetryPolicy(cfg.Retry.Policy()),
	)
}

func loadConfig(path string) (config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	cfg, err := config.FromFile(path)
	if err != nil {
		return config.Config{}, WrapExitError(ExitCommandError, "load config", err)
	}
	return cfg, nil
}

// openJournal opens the configured store. The none driver still journals
// to memory so the summary can count records.
func openJournal(jc config.JournalConfig) (journal.Store, error) {
	if jc.Driver == config.DriverSQLite {
		return journal.NewSQLiteStore(jc.Path)
	}
	return journal.NewMemoryStore(), nil
}

func parseLevel(s string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return level
}
