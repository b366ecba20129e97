package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/refchain/refchain/internal/codec"
	rcerrors "github.com/refchain/refchain/internal/errors"
	"github.com/refchain/refchain/internal/event"
	"github.com/refchain/refchain/internal/hash"
)

// AppendOptions holds flags for the append command.
type AppendOptions struct {
	*RootOptions
	Aggregate string
	Type      string
	Payload   string
	ID        string
	Timestamp int64
	Expect    string
}

// AppendResult is the output of a successful append.
type AppendResult struct {
	EventID     string `json:"event_id"`
	AggregateID string `json:"aggregate_id"`
	Version     string `json:"version"`
	Parent      string `json:"parent"`
}

// NewAppendCommand creates the append command.
func NewAppendCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &AppendOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "append",
		Short: "Append an event to an aggregate",
		Long: `Append one event to an aggregate's chain.

The aggregate's current ref becomes the event's parent version and the
expected value for the compare-and-swap; if another writer advances the
ref in between, the append fails with a conflict and nothing is stored.

Examples:
  refchain append --aggregate acct-1 --type account.credited --payload '{"amount":100}'
  refchain append --aggregate acct-1 --type account.credited --payload '{}' --expect <hex>`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAppend(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Aggregate, "aggregate", "", "aggregate id (required)")
	_ = cmd.MarkFlagRequired("aggregate")
	cmd.Flags().StringVar(&opts.Type, "type", "", "event type (required)")
	_ = cmd.MarkFlagRequired("type")
	cmd.Flags().StringVar(&opts.Payload, "payload", "{}", "event payload as JSON")
	cmd.Flags().StringVar(&opts.ID, "id", "", "event id (default: random UUID)")
	cmd.Flags().Int64Var(&opts.Timestamp, "timestamp", 0, "event timestamp in unix milliseconds (default: now)")
	cmd.Flags().StringVar(&opts.Expect, "expect", "", "expected current version as hex (default: the stored ref)")

	return cmd
}

func runAppend(opts *AppendOptions, cmd *cobra.Command) error {
	ctx := context.Background()
	out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), Verbose: opts.Verbose}

	if !json.Valid([]byte(opts.Payload)) {
		return NewExitError(ExitCommandError, "payload is not valid JSON")
	}

	s, _, err := openStore(opts.RootOptions)
	if err != nil {
		return err
	}
	defer s.Close()

	expected := hash.Zero()
	if opts.Expect != "" {
		expected, err = hash.Parse(opts.Expect)
		if err != nil {
			return WrapExitError(ExitCommandError, "invalid --expect value", err)
		}
	} else {
		current, exists, err := s.Read(ctx, opts.Aggregate)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read ref", err)
		}
		if exists {
			expected = current
		}
	}

	id := opts.ID
	if id == "" {
		id = uuid.NewString()
	}
	ts := opts.Timestamp
	if ts == 0 {
		ts = time.Now().UnixMilli()
	}

	ev := event.Event{
		ID:             id,
		AggregateID:    opts.Aggregate,
		Timestamp:      ts,
		CurrentVersion: expected,
		Body:           codec.RawPayload{Type: opts.Type, Data: json.RawMessage(opts.Payload)},
	}

	version, err := s.Commit(ctx, opts.Aggregate, ev, expected)
	if err != nil {
		if rcerrors.IsConflict(err) {
			_ = out.Error(string(rcerrors.CodeConcurrencyConflict), err.Error())
			return NewExitError(ExitFailure, "append lost the race")
		}
		if rcerrors.IsInvalidArgument(err) {
			_ = out.Error(string(rcerrors.CodeInvalidArgument), err.Error())
			return NewExitError(ExitCommandError, "invalid append")
		}
		return WrapExitError(ExitCommandError, "failed to commit event", err)
	}

	result := AppendResult{
		EventID:     id,
		AggregateID: opts.Aggregate,
		Version:     version.String(),
		Parent:      expected.String(),
	}
	if opts.Format == "json" {
		return out.Success(result)
	}
	return out.Success(fmt.Sprintf("appended %s to %s\nversion: %s", id, opts.Aggregate, version))
}
