package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/example/seqtrack/internal/engine"
	"github.com/example/seqtrack/internal/store"
)

// NewStatusCommand creates the status command.
func NewStatusCommand(rootOpts *RootOptions) *cobra.Command {
	var anomalyLimit int

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show population status and recent anomalies",
		Long: `Show a summary of the tracked population: counts by status, pending
trajectory collisions the scan command would reconcile, and recent
anomalies from the cycle ledger (rejected verifications and ignored
reservations).`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp(rootOpts)
			if err != nil {
				return err
			}
			defer app.Close()

			st, err := app.store.Load()
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to load store", err)
			}

			ctx := commandContext(cmd.Context())
			stats := store.Summarize(st)
			collisions := engine.FindCollisions(st)
			anomalies, err := app.ledger.Anomalies(ctx, anomalyLimit)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to read ledger", err)
			}
			cycles, err := app.ledger.CycleCount(ctx)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to read ledger", err)
			}

			f := &OutputFormatter{Format: rootOpts.Format, Writer: cmd.OutOrStdout(), Verbose: rootOpts.Verbose}
			if rootOpts.Format == "json" {
				return f.Success("", map[string]interface{}{
					"stats":      stats,
					"collisions": collisions,
					"anomalies":  anomalies,
					"cycles":     cycles,
				})
			}

			var b strings.Builder
			fmt.Fprintf(&b, "Population: %d tracked, %d live, %d reserved\n", stats.Total, stats.Live, stats.Reserved)
			for status, n := range stats.ByStatus {
				fmt.Fprintf(&b, "  %-12s %d\n", status, n)
			}
			fmt.Fprintf(&b, "Cycles committed: %d\n", cycles)
			if len(collisions) > 0 {
				fmt.Fprintf(&b, "Pending collisions (run 'seqtrack scan' to reconcile):\n")
				for _, pair := range collisions {
					fmt.Fprintf(&b, "  %d <- %d\n", pair[0], pair[1])
				}
			}
			if len(anomalies) > 0 {
				fmt.Fprintf(&b, "Recent anomalies:\n")
				for _, ev := range anomalies {
					fmt.Fprintf(&b, "  [%s] seq %d: %s (%s)\n", ev.Kind, ev.SeqID, ev.Detail, ev.CycleToken)
				}
			}
			return f.Success(strings.TrimRight(b.String(), "\n"), nil)
		},
	}

	cmd.Flags().IntVar(&anomalyLimit, "anomalies", 10, "maximum anomalies to show")

	return cmd
}
