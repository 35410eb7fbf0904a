package cli

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/example/seqtrack/internal/seq"
	"github.com/example/seqtrack/internal/store"
)

// NewReportCommand creates the report command, which renders the
// human-readable population report.
func NewReportCommand(rootOpts *RootOptions) *cobra.Command {
	var top int

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Render the population report",
		Long: `Render a human-readable report of the tracked population: aggregate
statistics, the longest live sequences, and the reservation listing.
Large numbers are grouped for readability.`,
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

			stats := store.Summarize(st)
			f := &OutputFormatter{Format: rootOpts.Format, Writer: cmd.OutOrStdout(), Verbose: rootOpts.Verbose}
			if rootOpts.Format == "json" {
				return f.Success("", map[string]interface{}{
					"stats":   stats,
					"longest": longestLive(st, top),
				})
			}
			return f.Success(renderReport(st, stats, top), nil)
		},
	}

	cmd.Flags().IntVar(&top, "top", 10, "number of longest live sequences to list")

	return cmd
}

// longestLive returns the n live records with the greatest length,
// longest first, ties broken by id.
func longestLive(st *store.State, n int) []*seq.Record {
	live := st.Live()
	sort.SliceStable(live, func(i, j int) bool {
		if live[i].Length != live[j].Length {
			return live[i].Length > live[j].Length
		}
		return live[i].ID < live[j].ID
	})
	if n > 0 && len(live) > n {
		live = live[:n]
	}
	return live
}

func renderReport(st *store.State, stats store.Stats, top int) string {
	p := message.NewPrinter(language.English)
	var b strings.Builder

	p.Fprintf(&b, "Sequences tracked: %d (%d live, %d reserved)\n", stats.Total, stats.Live, stats.Reserved)
	p.Fprintf(&b, "Total terms computed: %d (avg %.1f per sequence)\n", stats.TotalLength, stats.AvgLength)
	p.Fprintf(&b, "Largest live value: %d digits\n", stats.MaxDigits)
	if !st.ReservedAt.IsZero() {
		fmt.Fprintf(&b, "Reservations synced: %s\n", st.ReservedAt.Format("2006-01-02 15:04:05 MST"))
	}

	longest := longestLive(st, top)
	if len(longest) > 0 {
		fmt.Fprintf(&b, "\nLongest live sequences:\n")
		for _, r := range longest {
			fmt.Fprintf(&b, "%s\n", r)
		}
	}

	var reservations []string
	for _, r := range st.Live() {
		if line := r.ReservationLine(); line != "" {
			reservations = append(reservations, line)
		}
	}
	if len(reservations) > 0 {
		fmt.Fprintf(&b, "\nReservations:\n")
		for _, line := range reservations {
			b.WriteString(line)
		}
	}

	return strings.TrimRight(b.String(), "\n")
}
