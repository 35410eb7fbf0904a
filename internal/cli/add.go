package cli

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/seqtrack/internal/seq"
	"github.com/example/seqtrack/internal/store"
)

// NewAddCommand creates the add command, which registers new starting
// values with the population.
func NewAddCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add <id>...",
		Short: "Register new starting values",
		Long: `Register one or more starting values as tracked sequences. Each id
becomes an active record of length 1 whose first term is the id itself.
An id already present in the store is reported and left untouched.`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid sequence id", err)
			}

			app, err := openApp(rootOpts)
			if err != nil {
				return err
			}
			defer app.Close()

			var added, existing []int64
			err = app.withStore(commandContext(cmd.Context()), func(st *store.State) error {
				now := time.Now()
				for _, id := range ids {
					if _, ok := st.Records[id]; ok {
						existing = append(existing, id)
						continue
					}
					r := seq.NewRecord(id, now)
					r.Priority = seq.CheapestFirst{}.Priority(r, now)
					st.Records[id] = r
					added = append(added, id)
				}
				return nil
			})
			if err != nil {
				return err
			}

			f := &OutputFormatter{Format: rootOpts.Format, Writer: cmd.OutOrStdout(), Verbose: rootOpts.Verbose}
			text := fmt.Sprintf("added %d sequence(s), %d already tracked", len(added), len(existing))
			return f.Success(text, map[string]interface{}{
				"added":    added,
				"existing": existing,
			})
		},
	}
	return cmd
}

// parseIDs parses positional arguments into positive sequence ids.
func parseIDs(args []string) ([]int64, error) {
	ids := make([]int64, 0, len(args))
	for _, arg := range args {
		id, err := strconv.ParseInt(arg, 10, 64)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("%q is not a positive integer", arg)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
