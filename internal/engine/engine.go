package engine

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/example/seqtrack/internal/seq"
	"github.com/example/seqtrack/internal/store"
)

// Defaults for cycle shaping.
const (
	DefaultBatchSize      = 10
	DefaultParallelism    = 4
	DefaultAdvanceTimeout = 10 * time.Minute
)

// CycleKind distinguishes journal rows by the writer that produced them.
const (
	CycleKindUpdate    = "update"
	CycleKindReconcile = "reconcile"
	CycleKindReserve   = "reserve"
)

// CycleSummary is the accounting for one committed cycle.
type CycleSummary struct {
	Token      string    `json:"token"`
	Num        int64     `json:"num"`
	Kind       string    `json:"kind"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Popped     int       `json:"popped"`
	Advanced   int       `json:"advanced"`
	Terminated int       `json:"terminated"`
	Merged     int       `json:"merged"`
	Broken     int       `json:"broken"`
	Dropped    int       `json:"dropped"`
	Rejected   int       `json:"rejected"`
}

// CycleEvent is one per-record journal entry within a cycle.
type CycleEvent struct {
	CycleToken string
	SeqID      int64
	Kind       string
	Detail     string
	At         time.Time
}

// Event kinds written to the journal.
const (
	EventAdvanced             = "advanced"
	EventTerminated           = "terminated"
	EventMerged               = "merged"
	EventBroken               = "broken"
	EventDropped              = "dropped"
	EventVerificationRejected = "verification_rejected"
	EventReservationApplied   = "reservation_applied"
	EventReservationIgnored   = "reservation_ignored"
)

// Journal receives cycle accounting for the operator-facing ledger.
// Implementations must tolerate being called outside the store lock.
// A nil Journal on the engine disables journaling.
type Journal interface {
	RecordCycle(ctx context.Context, c CycleSummary) error
	RecordEvent(ctx context.Context, ev CycleEvent) error
}

// Engine orchestrates update cycles over the store.
//
// Thread-safety model:
//   - RequestDrop: safe from any goroutine
//   - RunCycle / Run / ReconcileCollisions: one goroutine at a time
type Engine struct {
	store    *store.Store
	advancer Advancer
	gate     *Gate
	journal  Journal
	clock    *Clock
	tokens   TokenGenerator

	batchSize      int
	parallelism    int
	advanceTimeout time.Duration
	now            func() time.Time

	mu           sync.Mutex
	pendingDrops map[int64]struct{}
}

// Option configures engine parameters.
type Option func(*Engine)

// WithBatchSize sets how many live records each cycle pops.
func WithBatchSize(n int) Option {
	return func(e *Engine) { e.batchSize = n }
}

// WithParallelism bounds concurrent external advance calls per batch.
func WithParallelism(n int) Option {
	return func(e *Engine) { e.parallelism = n }
}

// WithAdvanceTimeout bounds each external advance call.
func WithAdvanceTimeout(d time.Duration) Option {
	return func(e *Engine) { e.advanceTimeout = d }
}

// WithJournal attaches the cycle ledger.
func WithJournal(j Journal) Option {
	return func(e *Engine) { e.journal = j }
}

// WithTokenGenerator overrides the cycle token generator (for tests).
func WithTokenGenerator(g TokenGenerator) Option {
	return func(e *Engine) { e.tokens = g }
}

// WithClock resumes cycle numbering from a pre-configured clock.
func WithClock(c *Clock) Option {
	return func(e *Engine) { e.clock = c }
}

// WithNow overrides the wall clock (for tests).
func WithNow(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
		e.gate.Now = now
	}
}

// New creates an Engine over the given store, advance step, and gate.
func New(st *store.Store, adv Advancer, gate *Gate, opts ...Option) *Engine {
	e := &Engine{
		store:          st,
		advancer:       adv,
		gate:           gate,
		clock:          NewClock(),
		tokens:         UUIDv7Generator{},
		batchSize:      DefaultBatchSize,
		parallelism:    DefaultParallelism,
		advanceTimeout: DefaultAdvanceTimeout,
		now:            time.Now,
		pendingDrops:   make(map[int64]struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// RequestDrop queues ids for administrative removal. Drops are applied by
// sabotaging the heap entry at the next heap interaction and are
// confirmed once the corresponding commit succeeds. Unknown ids and
// repeated requests are harmless.
func (e *Engine) RequestDrop(ids ...int64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, id := range ids {
		e.pendingDrops[id] = struct{}{}
	}
}

// peekDrops copies the pending drop set without clearing it; drops are
// only cleared once a cycle commits them.
func (e *Engine) peekDrops() []int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]int64, 0, len(e.pendingDrops))
	for id := range e.pendingDrops {
		out = append(out, id)
	}
	return out
}

func (e *Engine) clearDrops(ids []int64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, id := range ids {
		delete(e.pendingDrops, id)
	}
}

// RunCycle performs one complete update cycle: lock, load, build the
// heap, pop a batch, advance, classify, verify terminals, commit.
//
// Record-level failures never abort the cycle. Lock timeouts and corrupt
// snapshots abort it with no partial write and surface to the caller.
func (e *Engine) RunCycle(ctx context.Context) (*CycleSummary, error) {
	summary := &CycleSummary{
		Token:     e.tokens.Generate(),
		Num:       e.clock.Next(),
		Kind:      CycleKindUpdate,
		StartedAt: e.now(),
	}
	drops := e.peekDrops()

	err := e.store.WithLock(ctx, func(st *store.State) error {
		now := e.now()

		h := NewHeap()
		for _, r := range st.Live() {
			r.Priority = e.gate.Policy.Priority(r, now)
			h.Push(r, r.Priority)
		}

		for _, id := range drops {
			h.Sabotage(id)
			r, ok := st.Records[id]
			if !ok || r.Status != seq.StatusActive {
				continue
			}
			if err := r.TransitionTo(seq.StatusDropped); err != nil {
				return err
			}
			summary.Dropped++
			e.recordEvent(ctx, CycleEvent{CycleToken: summary.Token, SeqID: id, Kind: EventDropped, At: now})
		}

		batch := h.PopBatch(e.batchSize)
		summary.Popped = len(batch)

		results := e.advanceBatch(ctx, batch)

		for i, r := range batch {
			res := Classify(st, r, results[i])
			applied := e.gate.Apply(ctx, r, res, summary.Token)
			e.tally(ctx, summary, applied, res)
			if applied.Status == seq.StatusActive && !applied.Rejected {
				h.Rekey(r, r.Priority)
			}
		}
		return nil
	})
	summary.FinishedAt = e.now()
	if err != nil {
		return nil, err
	}

	e.clearDrops(drops)
	e.recordCycle(ctx, *summary)
	slog.Info("cycle committed",
		"cycle", summary.Token, "num", summary.Num,
		"popped", summary.Popped, "advanced", summary.Advanced,
		"terminated", summary.Terminated, "merged", summary.Merged,
		"broken", summary.Broken, "dropped", summary.Dropped,
		"rejected", summary.Rejected)
	return summary, nil
}

// Run executes cycles until ctx is cancelled, pausing between them.
//
// Lock timeouts are retryable resource contention: they are logged and
// the loop continues. Anything else (notably a corrupt snapshot) is
// fatal and returned to the operator.
func (e *Engine) Run(ctx context.Context, pause time.Duration) error {
	for {
		if _, err := e.RunCycle(ctx); err != nil {
			if store.IsLockTimeout(err) {
				slog.Warn("cycle skipped, store lock contended", "error", err)
			} else {
				return err
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(pause):
		}
	}
}

// ReconcileCollisions scans the population for sequences whose
// trajectories have already collided and merges each later starter into
// the earliest one, gated through the merge verifier like any other
// merge.
func (e *Engine) ReconcileCollisions(ctx context.Context) (*CycleSummary, error) {
	summary := &CycleSummary{
		Token:     e.tokens.Generate(),
		Num:       e.clock.Next(),
		Kind:      CycleKindReconcile,
		StartedAt: e.now(),
	}

	err := e.store.WithLock(ctx, func(st *store.State) error {
		for _, pair := range FindCollisions(st) {
			target, merger := pair[0], pair[1]
			r := st.Records[merger]
			res := AdvanceResult{Outcome: OutcomeMerged, Target: target}
			applied := e.gate.Apply(ctx, r, res, summary.Token)
			e.tally(ctx, summary, applied, res)
		}
		return nil
	})
	summary.FinishedAt = e.now()
	if err != nil {
		return nil, err
	}

	e.recordCycle(ctx, *summary)
	slog.Info("collision scan committed",
		"cycle", summary.Token, "merged", summary.Merged, "rejected", summary.Rejected)
	return summary, nil
}

// advanceBatch drives the external advance step for each popped record
// with bounded parallelism. Each worker writes only its own slot, so the
// shared state stays untouched until the single-threaded apply loop.
func (e *Engine) advanceBatch(ctx context.Context, batch []*seq.Record) []AdvanceResult {
	results := make([]AdvanceResult, len(batch))
	sem := make(chan struct{}, e.parallelism)
	var wg sync.WaitGroup

	for i, r := range batch {
		wg.Add(1)
		go func(i int, r *seq.Record) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			actx, cancel := context.WithTimeout(ctx, e.advanceTimeout)
			defer cancel()

			res, err := e.advancer.Advance(actx, r.ID, r.Value)
			if err != nil {
				results[i] = AdvanceResult{Outcome: OutcomeFailed, Reason: err.Error()}
				return
			}
			results[i] = res
		}(i, r)
	}
	wg.Wait()
	return results
}

// tally folds one applied outcome into the summary and the journal.
func (e *Engine) tally(ctx context.Context, summary *CycleSummary, applied Applied, res AdvanceResult) {
	ev := CycleEvent{CycleToken: summary.Token, SeqID: applied.SeqID, At: e.now()}

	switch {
	case applied.Rejected:
		summary.Rejected++
		ev.Kind = EventVerificationRejected
		ev.Detail = applied.Err.Message
	case applied.Outcome == OutcomeNext:
		summary.Advanced++
		ev.Kind = EventAdvanced
	case applied.Outcome == OutcomeTerminal:
		summary.Terminated++
		ev.Kind = EventTerminated
	case applied.Outcome == OutcomeMerged:
		summary.Merged++
		ev.Kind = EventMerged
		ev.Detail = "into " + strconv.FormatInt(res.Target, 10)
	default:
		summary.Broken++
		ev.Kind = EventBroken
		ev.Detail = res.Reason
	}
	e.recordEvent(ctx, ev)
}

func (e *Engine) recordCycle(ctx context.Context, c CycleSummary) {
	if e.journal == nil {
		return
	}
	if err := e.journal.RecordCycle(ctx, c); err != nil {
		slog.Error("journal cycle write failed", "cycle", c.Token, "error", err)
	}
}

func (e *Engine) recordEvent(ctx context.Context, ev CycleEvent) {
	if e.journal == nil {
		return
	}
	if err := e.journal.RecordEvent(ctx, ev); err != nil {
		slog.Error("journal event write failed", "cycle", ev.CycleToken, "seq", ev.SeqID, "error", err)
	}
}
