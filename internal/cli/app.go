package cli

import (
	"context"
	"log/slog"

	"github.com/example/seqtrack/internal/config"
	"github.com/example/seqtrack/internal/engine"
	"github.com/example/seqtrack/internal/extproc"
	"github.com/example/seqtrack/internal/ledger"
	"github.com/example/seqtrack/internal/reserve"
	"github.com/example/seqtrack/internal/seq"
	"github.com/example/seqtrack/internal/store"
)

// app bundles the wired components every command needs: the persisted
// store, the cycle ledger, and the verification gate.
type app struct {
	cfg    config.Config
	store  *store.Store
	ledger *ledger.Ledger
	gate   *engine.Gate
}

// openApp loads the config and opens the store and ledger. Callers must
// Close.
func openApp(opts *RootOptions) (*app, error) {
	cfg, err := config.Load(opts.Config)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load config", err)
	}

	s, err := store.New(store.Options{
		JSONPath: cfg.Store.JSONPath,
		LockWait: cfg.Store.LockWait.Std(),
		Poll:     cfg.Store.PollInterval.Std(),
	})
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open store", err)
	}

	led, err := ledger.Open(cfg.Ledger.Path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open ledger", err)
	}

	gate := &engine.Gate{
		Verifier: &extproc.VerifyRunner{
			TerminationScript: cfg.Verify.TerminationScript,
			MergeScript:       cfg.Verify.MergeScript,
		},
		Policy:  seq.CheapestFirst{},
		Timeout: cfg.Scheduler.VerifyTimeout.Std(),
	}

	return &app{cfg: cfg, store: s, ledger: led, gate: gate}, nil
}

func (a *app) Close() {
	if err := a.ledger.Close(); err != nil {
		slog.Error("error closing ledger", "error", err)
	}
}

// newEngine wires the update-cycle engine, resuming the cycle counter
// from the ledger so cycle numbers stay strictly increasing across
// restarts.
func (a *app) newEngine(ctx context.Context) (*engine.Engine, error) {
	last, err := a.ledger.LastCycleNum(ctx)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to read ledger", err)
	}

	adv := &extproc.AdvanceRunner{
		Command: a.cfg.Advance.Command,
		Args:    a.cfg.Advance.Args,
	}
	return engine.New(a.store, adv, a.gate,
		engine.WithBatchSize(a.cfg.Scheduler.BatchSize),
		engine.WithParallelism(a.cfg.Scheduler.Parallelism),
		engine.WithAdvanceTimeout(a.cfg.Scheduler.AdvanceTimeout.Std()),
		engine.WithJournal(a.ledger),
		engine.WithClock(engine.NewClockAt(last)),
	), nil
}

// newMerger wires the reservation merger against the same store lock
// and gate as the engine.
func (a *app) newMerger(ctx context.Context) (*reserve.Merger, error) {
	last, err := a.ledger.LastCycleNum(ctx)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to read ledger", err)
	}
	return &reserve.Merger{
		Store:   a.store,
		Gate:    a.gate,
		Journal: a.ledger,
		Clock:   engine.NewClockAt(last),
	}, nil
}

// newFetcher builds the reservation document fetcher.
func (a *app) newFetcher() (*reserve.Fetcher, error) {
	if a.cfg.Reservations.URL == "" {
		return nil, NewExitError(ExitCommandError, "reservations.url is not configured")
	}
	return &reserve.Fetcher{
		URL:     a.cfg.Reservations.URL,
		Timeout: a.cfg.Reservations.FetchTimeout.Std(),
	}, nil
}

// withStore runs fn under the store lock, mapping failures to exit
// codes.
func (a *app) withStore(ctx context.Context, fn func(st *store.State) error) error {
	if err := a.store.WithLock(ctx, fn); err != nil {
		if store.IsLockTimeout(err) {
			return WrapExitError(ExitFailure, "store is locked by another writer", err)
		}
		return WrapExitError(ExitCommandError, "store operation failed", err)
	}
	return nil
}

// commandContext returns the cobra context or a background fallback.
func commandContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}
