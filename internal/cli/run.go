package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Once bool
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run update cycles over the population",
		Long: `Run the scheduler loop: each cycle pops the cheapest sequences from
the priority heap, advances them through the external step, verifies
terminal outcomes, and commits the batch atomically under the store
lock.

Example:
  seqtrack run --config seqtrack.yaml
  seqtrack run --once --verbose`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScheduler(opts, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Once, "once", false, "run a single cycle and exit")

	return cmd
}

func runScheduler(opts *RunOptions, cmd *cobra.Command) error {
	app, err := openApp(opts.RootOptions)
	if err != nil {
		return err
	}
	defer app.Close()

	if app.cfg.Advance.Command == "" {
		return NewExitError(ExitCommandError, "advance.command is not configured")
	}

	ctx, cancel := context.WithCancel(commandContext(cmd.Context()))
	defer cancel()

	eng, err := app.newEngine(ctx)
	if err != nil {
		return err
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			slog.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	slog.Info("scheduler starting",
		"store", app.store.Path(),
		"batch_size", app.cfg.Scheduler.BatchSize,
		"once", opts.Once)

	if opts.Once {
		summary, err := eng.RunCycle(ctx)
		if err != nil {
			return WrapExitError(ExitFailure, "cycle failed", err)
		}
		f := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), Verbose: opts.Verbose}
		text := fmt.Sprintf("cycle %s: popped %d, advanced %d, terminated %d, merged %d, broken %d, dropped %d, rejected %d",
			summary.Token, summary.Popped, summary.Advanced, summary.Terminated,
			summary.Merged, summary.Broken, summary.Dropped, summary.Rejected)
		return f.Success(text, summary)
	}

	fmt.Fprintln(cmd.OutOrStdout(), "Scheduler started. Press Ctrl-C to stop.")
	err = eng.Run(ctx, app.cfg.Scheduler.CyclePause.Std())
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return WrapExitError(ExitFailure, "scheduler error", err)
	}

	slog.Info("scheduler stopped gracefully")
	return nil
}
