package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/example/seqtrack/internal/reserve"
)

// NewReserveCommand creates the reserve command.
func NewReserveCommand(rootOpts *RootOptions) *cobra.Command {
	var holder string

	cmd := &cobra.Command{
		Use:   "reserve <id>...",
		Short: "Reserve sequences for a holder",
		Long: `Mark sequences as reserved by a holder so other collaborators leave
them alone. Sequences already held by someone else are reported and
left untouched.`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOwnership(rootOpts, cmd, args, holder, true)
		},
	}

	cmd.Flags().StringVar(&holder, "holder", "", "reservation holder name (required)")
	_ = cmd.MarkFlagRequired("holder")

	return cmd
}

// NewUnreserveCommand creates the unreserve command.
func NewUnreserveCommand(rootOpts *RootOptions) *cobra.Command {
	var holder string

	cmd := &cobra.Command{
		Use:           "unreserve <id>...",
		Short:         "Release sequences held by a holder",
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOwnership(rootOpts, cmd, args, holder, false)
		},
	}

	cmd.Flags().StringVar(&holder, "holder", "", "reservation holder name (required)")
	_ = cmd.MarkFlagRequired("holder")

	return cmd
}

func runOwnership(rootOpts *RootOptions, cmd *cobra.Command, args []string, holder string, acquire bool) error {
	ids, err := parseIDs(args)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid sequence id", err)
	}

	app, err := openApp(rootOpts)
	if err != nil {
		return err
	}
	defer app.Close()

	ctx := commandContext(cmd.Context())
	m, err := app.newMerger(ctx)
	if err != nil {
		return err
	}

	var res *reserve.OwnershipResult
	var verb string
	if acquire {
		res, err = m.Reserve(ctx, holder, ids)
		verb = "reserved"
	} else {
		res, err = m.Unreserve(ctx, holder, ids)
		verb = "released"
	}
	if err != nil {
		return WrapExitError(ExitFailure, "ownership update failed", err)
	}

	f := &OutputFormatter{Format: rootOpts.Format, Writer: cmd.OutOrStdout(), Verbose: rootOpts.Verbose}
	text := fmt.Sprintf("%s %d sequence(s), %d held by others, %d not found",
		verb, len(res.Applied), len(res.HeldByOther), len(res.NotFound))
	return f.Success(text, res)
}

// NewMergeCommand creates the merge command, which fetches the
// collaborator reservation document and folds reported progress into
// the store.
func NewMergeCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "merge",
		Short: "Fetch and merge collaborator-reported progress",
		Long: `Fetch the reservation document from the configured URL, parse it, and
merge reported progress into the store. Reported values are accepted
only when they lie strictly beyond the locally known length, and any
reported termination or collision passes through the verification gate
before becoming final.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp(rootOpts)
			if err != nil {
				return err
			}
			defer app.Close()

			ctx := commandContext(cmd.Context())

			fetcher, err := app.newFetcher()
			if err != nil {
				return err
			}
			batch, err := fetcher.Fetch(ctx)
			if err != nil {
				return WrapExitError(ExitFailure, "failed to fetch reservations", err)
			}

			m, err := app.newMerger(ctx)
			if err != nil {
				return err
			}
			summary, err := m.Merge(ctx, batch)
			if err != nil {
				return WrapExitError(ExitFailure, "merge failed", err)
			}

			f := &OutputFormatter{Format: rootOpts.Format, Writer: cmd.OutOrStdout(), Verbose: rootOpts.Verbose}
			text := fmt.Sprintf("merge %s: %d entries, advanced %d, terminated %d, merged %d, rejected %d, %d malformed line(s)",
				summary.Token, summary.Popped, summary.Advanced, summary.Terminated,
				summary.Merged, summary.Rejected, len(batch.Rejected))
			return f.Success(text, summary)
		},
	}
	return cmd
}
