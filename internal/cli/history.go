package cli

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/eventflow/pkg/eventflow/journal"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	DBPath string
	RunID  string
	Event  string
}

// HistoryRecord is the JSON view of a journal record.
type HistoryRecord struct {
	Seq       int64     `json:"seq"`
	RunID     string    `json:"run_id"`
	EventID   string    `json:"event_id"`
	DebugKey  string    `json:"debug_key"`
	Kind      string    `json:"kind"`
	Attempt   int       `json:"attempt"`
	Detail    string    `json:"detail,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// History is a list of journal records.
type History []HistoryRecord

// String renders one aligned row per record. Event IDs and timestamps are
// left to the JSON format.
func (h History) String() string {
	if len(h) == 0 {
		return "no records"
	}
	rows := make([]string, 0, len(h)+1)
	rows = append(rows, strings.TrimRight(
		fmt.Sprintf("%-10s %-4s %-10s %-10s %-7s %s", "RUN", "SEQ", "KIND", "KEY", "ATTEMPT", "DETAIL"), " "))
	for _, r := range h {
		rows = append(rows, strings.TrimRight(
			fmt.Sprintf("%-10s %-4d %-10s %-10s %-7d %s", r.RunID, r.Seq, r.Kind, r.DebugKey, r.Attempt, r.Detail), " "))
	}
	return strings.Join(rows, "\n")
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Print journaled lifecycle records",
		Long: `Read the SQLite journal written by "eventflow run --db" and print its
records in append order, optionally limited to one run or one event.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(cmd, rootOpts, opts)
		},
	}

	cmd.Flags().StringVar(&opts.DBPath, "db", "", "SQLite journal path (required)")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "only records of this run")
	cmd.Flags().StringVar(&opts.Event, "event", "", "only records of this event ID")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runHistory(cmd *cobra.Command, rootOpts *RootOptions, opts *HistoryOptions) error {
	if _, err := os.Stat(opts.DBPath); err != nil {
		return WrapExitError(ExitCommandError, "journal not found", err)
	}
	store, err := journal.NewSQLiteStore(opts.DBPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "open journal", err)
	}
	defer store.Close()

	var records []journal.Record
	if opts.Event != "" {
		records, err = store.ListByEvent(opts.Event)
	} else {
		records, err = store.List(opts.RunID)
	}
	if err != nil {
		return WrapExitError(ExitFailure, "read journal", err)
	}

	history := make(History, 0, len(records))
	for _, r := range records {
		if opts.Event != "" && opts.RunID != "" && r.RunID != opts.RunID {
			continue
		}
		history = append(history, HistoryRecord{
			Seq:       r.Seq,
			RunID:     r.RunID,
			EventID:   r.EventID,
			DebugKey:  r.DebugKey,
			Kind:      string(r.Kind),
			Attempt:   r.Attempt,
			Detail:    r.Detail,
			Timestamp: r.Timestamp,
		})
	}

	out := output{format: rootOpts.Format, w: cmd.OutOrStdout()}
	return out.success(history)
}
