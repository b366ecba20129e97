package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/refchain/refchain/internal/event"
)

// LogOptions holds flags for the log command.
type LogOptions struct {
	*RootOptions
	Aggregate string
	Type      string
	Start     int64
	End       int64
	All       bool
}

// LogEntry is one event in the log output.
type LogEntry struct {
	ID          string          `json:"id"`
	AggregateID string          `json:"aggregate_id"`
	Timestamp   int64           `json:"timestamp"`
	Parent      string          `json:"parent"`
	Type        string          `json:"type"`
	Payload     json.RawMessage `json:"payload"`
}

// NewLogCommand creates the log command.
func NewLogCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &LogOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "log",
		Short: "List events",
		Long: `List one aggregate's events, or every event with --all.

Events are ordered by timestamp, with commit order breaking ties.
Type and inclusive time-range filters narrow per-aggregate listings.

Examples:
  refchain log --aggregate acct-1
  refchain log --aggregate acct-1 --type account.credited --start 1700000000000
  refchain log --all --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLog(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Aggregate, "aggregate", "", "aggregate id")
	cmd.Flags().StringVar(&opts.Type, "type", "", "filter by event type")
	cmd.Flags().Int64Var(&opts.Start, "start", -1, "inclusive lower timestamp bound")
	cmd.Flags().Int64Var(&opts.End, "end", -1, "inclusive upper timestamp bound")
	cmd.Flags().BoolVar(&opts.All, "all", false, "list events across all aggregates")

	return cmd
}

func runLog(opts *LogOptions, cmd *cobra.Command) error {
	ctx := context.Background()
	out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), Verbose: opts.Verbose}

	if opts.All == (opts.Aggregate != "") {
		return NewExitError(ExitCommandError, "exactly one of --aggregate or --all is required")
	}

	s, _, err := openStore(opts.RootOptions)
	if err != nil {
		return err
	}
	defer s.Close()

	var events []event.Event
	if opts.All {
		for ev, err := range s.All(ctx) {
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to list events", err)
			}
			events = append(events, ev)
		}
	} else {
		f := event.Filter{AggregateID: opts.Aggregate, Type: opts.Type}
		if opts.Start >= 0 {
			start := opts.Start
			f.Start = &start
		}
		if opts.End >= 0 {
			end := opts.End
			f.End = &end
		}
		events, err = s.Events(ctx, f)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to list events", err)
		}
	}

	entries := make([]LogEntry, 0, len(events))
	for _, ev := range events {
		payload, err := json.Marshal(ev.Body)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to render payload", err)
		}
		entries = append(entries, LogEntry{
			ID:          ev.ID,
			AggregateID: ev.AggregateID,
			Timestamp:   ev.Timestamp,
			Parent:      ev.CurrentVersion.String(),
			Type:        ev.Type(),
			Payload:     payload,
		})
	}

	if opts.Format == "json" {
		return out.Success(entries)
	}
	return out.Success(renderLogText(entries))
}

func renderLogText(entries []LogEntry) string {
	if len(entries) == 0 {
		return "no events"
	}
	var sb strings.Builder
	for i, e := range entries {
		if i > 0 {
			sb.WriteString("\n")
		}
		fmt.Fprintf(&sb, "%d  %s  %s  %s  %s", e.Timestamp, e.AggregateID, e.Type, e.ID, e.Payload)
	}
	return sb.String()
}
