package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewScanCommand creates the scan command, which reconciles sequences
// whose trajectories have already collided.
func NewScanCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Find and reconcile collided sequences",
		Long: `Scan the population for pairs of active sequences whose trajectories
have collided (identical current value) and merge the later one into
the earlier, gated through the merge verifier. The commit is atomic
under the store lock.`,
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
			eng, err := app.newEngine(ctx)
			if err != nil {
				return err
			}

			summary, err := eng.ReconcileCollisions(ctx)
			if err != nil {
				return WrapExitError(ExitFailure, "collision scan failed", err)
			}

			f := &OutputFormatter{Format: rootOpts.Format, Writer: cmd.OutOrStdout(), Verbose: rootOpts.Verbose}
			text := fmt.Sprintf("scan %s: merged %d, rejected %d",
				summary.Token, summary.Merged, summary.Rejected)
			return f.Success(text, summary)
		},
	}
	return cmd
}
