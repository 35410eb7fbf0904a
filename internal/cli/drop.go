package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/example/seqtrack/internal/seq"
	"github.com/example/seqtrack/internal/store"
)

// NewDropCommand creates the drop command, which removes sequences from
// scheduling while keeping them in the store as closed history.
func NewDropCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "drop <id>...",
		Short: "Drop sequences from scheduling",
		Long: `Mark one or more sequences as dropped. A dropped sequence is never
scheduled again but stays in the store as closed history. Ids that are
unknown or already in a terminal state are reported and left untouched.`,
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

			var dropped, notFound, terminal []int64
			err = app.withStore(commandContext(cmd.Context()), func(st *store.State) error {
				for _, id := range ids {
					r, ok := st.Records[id]
					switch {
					case !ok:
						notFound = append(notFound, id)
					case r.Status.Terminal():
						terminal = append(terminal, id)
					default:
						if err := r.TransitionTo(seq.StatusDropped); err != nil {
							return err
						}
						dropped = append(dropped, id)
					}
				}
				return nil
			})
			if err != nil {
				return err
			}

			f := &OutputFormatter{Format: rootOpts.Format, Writer: cmd.OutOrStdout(), Verbose: rootOpts.Verbose}
			text := fmt.Sprintf("dropped %d sequence(s), %d not found, %d already closed",
				len(dropped), len(notFound), len(terminal))
			return f.Success(text, map[string]interface{}{
				"dropped":   dropped,
				"not_found": notFound,
				"terminal":  terminal,
			})
		},
	}
	return cmd
}
