package cli

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"
)

// RefsOptions holds flags for the refs command.
type RefsOptions struct {
	*RootOptions
	Aggregate string
}

// RefEntry is one aggregate's current ref.
type RefEntry struct {
	AggregateID string `json:"aggregate_id"`
	Current     string `json:"current"`
}

// NewRefsCommand creates the refs command.
func NewRefsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RefsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "refs",
		Short: "Show current refs",
		Long: `Show the current ref of one aggregate, or of every aggregate
present in the log when no --aggregate is given.

Examples:
  refchain refs
  refchain refs --aggregate acct-1 --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRefs(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Aggregate, "aggregate", "", "aggregate id")

	return cmd
}

func runRefs(opts *RefsOptions, cmd *cobra.Command) error {
	ctx := context.Background()
	out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), Verbose: opts.Verbose}

	s, _, err := openStore(opts.RootOptions)
	if err != nil {
		return err
	}
	defer s.Close()

	var entries []RefEntry
	if opts.Aggregate != "" {
		current, exists, err := s.Read(ctx, opts.Aggregate)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read ref", err)
		}
		if !exists {
			return NewExitError(ExitFailure, fmt.Sprintf("no ref for aggregate %q", opts.Aggregate))
		}
		entries = append(entries, RefEntry{AggregateID: opts.Aggregate, Current: current.String()})
	} else {
		seen := make(map[string]struct{})
		for ev, err := range s.All(ctx) {
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to list events", err)
			}
			seen[ev.AggregateID] = struct{}{}
		}
		ids := make([]string, 0, len(seen))
		for id := range seen {
			ids = append(ids, id)
		}
		sort.Strings(ids)

		for _, id := range ids {
			current, exists, err := s.Read(ctx, id)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to read ref", err)
			}
			if !exists {
				continue
			}
			entries = append(entries, RefEntry{AggregateID: id, Current: current.String()})
		}
	}

	if opts.Format == "json" {
		return out.Success(entries)
	}
	if len(entries) == 0 {
		return out.Success("no refs")
	}
	var sb strings.Builder
	for i, e := range entries {
		if i > 0 {
			sb.WriteString("\n")
		}
		fmt.Fprintf(&sb, "%s  %s", e.Current, e.AggregateID)
	}
	return out.Success(sb.String())
}
