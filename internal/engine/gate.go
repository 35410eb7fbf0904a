package engine

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/example/seqtrack/internal/seq"
)

// DefaultVerifyTimeout bounds each external verification call so a stuck
// script never blocks the rest of the batch.
const DefaultVerifyTimeout = 2 * time.Minute

// Applied describes what the gate did to one record.
type Applied struct {
	SeqID    int64
	Outcome  AdvanceOutcome
	Status   seq.Status
	Rejected bool         // verification rejected; record left active, unchanged
	Err      *RecordError // advance failure or verification rejection detail
}

// Gate applies classified advance outcomes to records inside the store's
// critical section, routing terminal outcomes through the external
// verification scripts first.
//
// Verification is a required state-machine edge, not a side check: a
// terminated or merged status is only ever written after the verifier
// confirms it. A rejection leaves the record active with an unchanged
// value and surfaces as a VERIFICATION_REJECTED anomaly.
//
// The gate is shared by the update cycle and the reservation merger so
// both paths finalize state identically.
type Gate struct {
	Verifier Verifier
	Policy   seq.PriorityPolicy
	Timeout  time.Duration // per verification call (0: DefaultVerifyTimeout)
	Now      func() time.Time
}

func (g *Gate) now() time.Time {
	if g.Now != nil {
		return g.Now()
	}
	return time.Now()
}

func (g *Gate) timeout() time.Duration {
	if g.Timeout > 0 {
		return g.Timeout
	}
	return DefaultVerifyTimeout
}

// Apply finalizes one advance outcome on r. The caller must hold the
// store lock; mutations become durable with the cycle's commit.
func (g *Gate) Apply(ctx context.Context, r *seq.Record, res AdvanceResult, cycleToken string) Applied {
	now := g.now()

	switch res.Outcome {
	case OutcomeNext:
		r.Advanced(res.Next, now)
		r.Priority = g.Policy.Priority(r, now)
		return Applied{SeqID: r.ID, Outcome: OutcomeNext, Status: r.Status}

	case OutcomeTerminal:
		confirmed, detail := g.verify(ctx, func(vctx context.Context) (bool, error) {
			return g.Verifier.VerifyTermination(vctx, r)
		})
		if !confirmed {
			return g.reject(r, res.Outcome, cycleToken, "termination "+detail)
		}
		next := res.Next
		if next == nil {
			next = big.NewInt(1)
		}
		r.Advanced(next, now)
		if err := r.TransitionTo(seq.StatusTerminated); err != nil {
			return g.reject(r, res.Outcome, cycleToken, err.Error())
		}
		return Applied{SeqID: r.ID, Outcome: OutcomeTerminal, Status: r.Status}

	case OutcomeMerged:
		confirmed, detail := g.verify(ctx, func(vctx context.Context) (bool, error) {
			return g.Verifier.VerifyMerge(vctx, r, res.Target)
		})
		if !confirmed {
			return g.reject(r, res.Outcome, cycleToken, fmt.Sprintf("merge into %d %s", res.Target, detail))
		}
		if err := r.TransitionTo(seq.StatusMerged); err != nil {
			return g.reject(r, res.Outcome, cycleToken, err.Error())
		}
		r.MergedInto = res.Target
		r.LastUpdated = now
		return Applied{SeqID: r.ID, Outcome: OutcomeMerged, Status: r.Status}

	default:
		recErr := NewAdvanceFailure(cycleToken, r.ID, res.Reason)
		if err := r.TransitionTo(seq.StatusBroken); err != nil {
			slog.Error("cannot mark record broken", "seq", r.ID, "error", err)
			return Applied{SeqID: r.ID, Outcome: OutcomeFailed, Status: r.Status, Err: recErr}
		}
		r.BrokenReason = res.Reason
		slog.Warn("advance failed, record broken", "seq", r.ID, "cycle", cycleToken, "reason", res.Reason)
		return Applied{SeqID: r.ID, Outcome: OutcomeFailed, Status: r.Status, Err: recErr}
	}
}

// verify runs one bounded verification call. Script errors count as
// rejections; the detail string feeds the anomaly record.
func (g *Gate) verify(ctx context.Context, fn func(context.Context) (bool, error)) (bool, string) {
	vctx, cancel := context.WithTimeout(ctx, g.timeout())
	defer cancel()

	confirmed, err := fn(vctx)
	if err != nil {
		return false, fmt.Sprintf("verifier error: %v", err)
	}
	if !confirmed {
		return false, "rejected by verifier"
	}
	return true, ""
}

// reject records a verification rejection. The record was never mutated,
// so it simply stays active; the discrepancy is logged for human
// follow-up and not retried within the cycle.
func (g *Gate) reject(r *seq.Record, outcome AdvanceOutcome, cycleToken, detail string) Applied {
	recErr := NewVerificationRejected(cycleToken, r.ID, detail)
	slog.Warn("verification rejected", "seq", r.ID, "cycle", cycleToken, "detail", detail)
	return Applied{SeqID: r.ID, Outcome: outcome, Status: r.Status, Rejected: true, Err: recErr}
}
