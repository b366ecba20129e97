package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/refchain/refchain/internal/verify"
)

// VerifyOptions holds flags for the verify command.
type VerifyOptions struct {
	*RootOptions
	Aggregate string
}

// NewVerifyCommand creates the verify command.
func NewVerifyCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &VerifyOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Verify hash-chain integrity",
		Long: `Walk each aggregate's chain backward from its ref, recomputing
content hashes, and report missing heads, broken links and orphaned
events. Exits non-zero when any chain fails.

Examples:
  refchain verify
  refchain verify --aggregate acct-1 --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVerify(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Aggregate, "aggregate", "", "verify a single aggregate")

	return cmd
}

func runVerify(opts *VerifyOptions, cmd *cobra.Command) error {
	ctx := context.Background()
	out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), Verbose: opts.Verbose}

	s, _, err := openStore(opts.RootOptions)
	if err != nil {
		return err
	}
	defer s.Close()

	var reports []verify.Report
	if opts.Aggregate != "" {
		report, err := verify.Aggregate(ctx, s, opts.Aggregate)
		if err != nil {
			return WrapExitError(ExitCommandError, "verification failed to run", err)
		}
		reports = []verify.Report{report}
	} else {
		reports, err = verify.All(ctx, s)
		if err != nil {
			return WrapExitError(ExitCommandError, "verification failed to run", err)
		}
	}

	failed := 0
	for _, r := range reports {
		if !r.OK() {
			failed++
		}
	}

	if opts.Format == "json" {
		if err := out.Success(reports); err != nil {
			return err
		}
	} else {
		if err := out.Success(renderVerifyText(reports)); err != nil {
			return err
		}
	}

	if failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d aggregate(s) failed verification", failed))
	}
	return nil
}

func renderVerifyText(reports []verify.Report) string {
	if len(reports) == 0 {
		return "nothing to verify"
	}
	var sb strings.Builder
	for i, r := range reports {
		if i > 0 {
			sb.WriteString("\n")
		}
		if r.OK() {
			fmt.Fprintf(&sb, "ok    %s  (%d events)", r.AggregateID, r.ChainLength)
			continue
		}
		fmt.Fprintf(&sb, "FAIL  %s", r.AggregateID)
		for _, issue := range r.Issues {
			fmt.Fprintf(&sb, "\n      %s: %s", issue.Code, issue.Message)
			if issue.EventID != "" {
				fmt.Fprintf(&sb, " (event %s)", issue.EventID)
			}
		}
	}
	return sb.String()
}
