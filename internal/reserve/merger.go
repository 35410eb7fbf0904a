package reserve

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/example/seqtrack/internal/engine"
	"github.com/example/seqtrack/internal/store"
)

// Merger folds a reservation batch into the store.
//
// It takes the same exclusive store lock as the update cycle, so the
// two writers never interleave: the merge either sees the population
// before or after a cycle's commit, never in between. Reported progress
// is accepted only when it lies strictly beyond the locally known
// length; everything else is ignored and journaled, never applied
// halfway.
//
// Accepted values run the same classification and verification path as
// a locally computed advance, so an externally reported fixed point or
// collision is gated exactly like a local one.
type Merger struct {
	Store   *store.Store
	Gate    *engine.Gate
	Journal engine.Journal
	Tokens  engine.TokenGenerator
	Clock   *engine.Clock
	Now     func() time.Time
}

func (m *Merger) now() time.Time {
	if m.Now != nil {
		return m.Now()
	}
	return time.Now()
}

func (m *Merger) tokens() engine.TokenGenerator {
	if m.Tokens != nil {
		return m.Tokens
	}
	return engine.UUIDv7Generator{}
}

// Merge applies one batch under the store lock and commits atomically.
// A lock timeout or corrupt store aborts the whole merge with no state
// change.
func (m *Merger) Merge(ctx context.Context, batch *Batch) (*engine.CycleSummary, error) {
	token := m.tokens().Generate()
	summary := &engine.CycleSummary{
		Token:     token,
		Kind:      engine.CycleKindReserve,
		StartedAt: m.now(),
		Popped:    len(batch.Entries),
	}
	if m.Clock != nil {
		summary.Num = m.Clock.Next()
	}

	log := slog.With("cycle", token, "entries", len(batch.Entries))
	log.Info("reservation merge started", "rejected_lines", len(batch.Rejected))

	err := m.Store.WithLock(ctx, func(st *store.State) error {
		for _, id := range batch.IDs() {
			m.applyEntry(ctx, st, batch.Entries[id], token, summary)
		}
		if !batch.FetchedAt.IsZero() {
			st.ReservedAt = batch.FetchedAt
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	summary.FinishedAt = m.now()
	m.recordCycle(ctx, summary)
	log.Info("reservation merge committed",
		"advanced", summary.Advanced,
		"terminated", summary.Terminated,
		"merged", summary.Merged,
		"rejected", summary.Rejected)
	return summary, nil
}

// applyEntry folds one reported entry into the live state. The caller
// holds the store lock.
func (m *Merger) applyEntry(ctx context.Context, st *store.State, entry Entry, token string, summary *engine.CycleSummary) {
	r, ok := st.Records[entry.ID]
	if !ok {
		m.ignore(ctx, entry, token, "unknown sequence")
		return
	}
	if r.Status.Terminal() {
		m.ignore(ctx, entry, token, "sequence is "+string(r.Status))
		return
	}

	if entry.Holder != r.ReservedBy {
		slog.Info("reservation holder updated",
			"seq", entry.ID, "holder", entry.Holder, "was", r.ReservedBy)
		r.ReservedBy = entry.Holder
	}

	if entry.Value == nil {
		return
	}
	if entry.Length <= r.Length {
		m.ignore(ctx, entry, token, "no forward progress beyond length "+strconv.Itoa(r.Length))
		return
	}

	res := engine.Classify(st, r, engine.AdvanceResult{
		Outcome: engine.OutcomeNext,
		Next:    entry.Value,
	})
	applied := m.Gate.Apply(ctx, r, res, token)
	if applied.Rejected {
		summary.Rejected++
		m.recordEvent(ctx, engine.CycleEvent{
			CycleToken: token,
			SeqID:      entry.ID,
			Kind:       engine.EventVerificationRejected,
			Detail:     applied.Err.Message,
			At:         m.now(),
		})
		return
	}

	// The gate advances by one term; a reservation reports an absolute
	// index, so the accepted record jumps to the reported length.
	detail := ""
	switch applied.Outcome {
	case engine.OutcomeNext:
		r.Length = entry.Length
		summary.Advanced++
		detail = "advanced to length " + strconv.Itoa(entry.Length)
	case engine.OutcomeTerminal:
		r.Length = entry.Length
		summary.Terminated++
		detail = "terminated at length " + strconv.Itoa(entry.Length)
	case engine.OutcomeMerged:
		summary.Merged++
		detail = "merged into " + strconv.FormatInt(res.Target, 10)
	}
	m.recordEvent(ctx, engine.CycleEvent{
		CycleToken: token,
		SeqID:      entry.ID,
		Kind:       engine.EventReservationApplied,
		Detail:     detail,
		At:         m.now(),
	})
}

func (m *Merger) ignore(ctx context.Context, entry Entry, token, reason string) {
	slog.Debug("reservation ignored", "seq", entry.ID, "reason", reason)
	m.recordEvent(ctx, engine.CycleEvent{
		CycleToken: token,
		SeqID:      entry.ID,
		Kind:       engine.EventReservationIgnored,
		Detail:     reason,
		At:         m.now(),
	})
}

func (m *Merger) recordCycle(ctx context.Context, c *engine.CycleSummary) {
	if m.Journal == nil {
		return
	}
	if err := m.Journal.RecordCycle(ctx, *c); err != nil {
		slog.Error("journal cycle write failed", "cycle", c.Token, "error", err)
	}
}

func (m *Merger) recordEvent(ctx context.Context, ev engine.CycleEvent) {
	if m.Journal == nil {
		return
	}
	if err := m.Journal.RecordEvent(ctx, ev); err != nil {
		slog.Error("journal event write failed", "cycle", ev.CycleToken, "seq", ev.SeqID, "error", err)
	}
}

// OwnershipResult classifies the per-id outcomes of a Reserve or
// Unreserve request.
type OwnershipResult struct {
	Applied     []int64          // reserved or released as requested
	NotFound    []int64          // id is not tracked
	Terminal    []int64          // sequence already closed
	AlreadyHeld []int64          // Reserve: already held by the same holder
	HeldByOther map[int64]string // held by a different holder, left alone
	Unreserved  []int64          // Unreserve: was not reserved at all
}

// Reserve marks the given sequences as held by holder. Sequences held
// by someone else are left untouched and reported.
func (m *Merger) Reserve(ctx context.Context, holder string, ids []int64) (*OwnershipResult, error) {
	res := &OwnershipResult{HeldByOther: make(map[int64]string)}
	err := m.Store.WithLock(ctx, func(st *store.State) error {
		now := m.now()
		for _, id := range ids {
			r, ok := st.Records[id]
			switch {
			case !ok:
				res.NotFound = append(res.NotFound, id)
			case r.Status.Terminal():
				res.Terminal = append(res.Terminal, id)
			case r.ReservedBy == holder:
				res.AlreadyHeld = append(res.AlreadyHeld, id)
			case r.ReservedBy != "":
				res.HeldByOther[id] = r.ReservedBy
			default:
				r.ReservedBy = holder
				res.Applied = append(res.Applied, id)
			}
		}
		if len(res.Applied) > 0 {
			st.ReservedAt = now
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	slog.Info("sequences reserved", "holder", holder,
		"applied", len(res.Applied), "held_by_other", len(res.HeldByOther))
	return res, nil
}

// Unreserve releases the given sequences held by holder. Sequences held
// by someone else are left untouched and reported.
func (m *Merger) Unreserve(ctx context.Context, holder string, ids []int64) (*OwnershipResult, error) {
	res := &OwnershipResult{HeldByOther: make(map[int64]string)}
	err := m.Store.WithLock(ctx, func(st *store.State) error {
		now := m.now()
		for _, id := range ids {
			r, ok := st.Records[id]
			switch {
			case !ok:
				res.NotFound = append(res.NotFound, id)
			case r.ReservedBy == "":
				res.Unreserved = append(res.Unreserved, id)
			case r.ReservedBy != holder:
				res.HeldByOther[id] = r.ReservedBy
			default:
				r.ReservedBy = ""
				res.Applied = append(res.Applied, id)
			}
		}
		if len(res.Applied) > 0 {
			st.ReservedAt = now
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	slog.Info("sequences released", "holder", holder,
		"applied", len(res.Applied), "held_by_other", len(res.HeldByOther))
	return res, nil
}
