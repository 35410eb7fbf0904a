package engine

import (
	"context"
	"math/big"
	"sort"

	"github.com/example/seqtrack/internal/seq"
	"github.com/example/seqtrack/internal/store"
)

// AdvanceOutcome classifies the result of advancing a sequence one term.
type AdvanceOutcome int

const (
	// OutcomeNext means the next term was computed and the sequence stays
	// active.
	OutcomeNext AdvanceOutcome = iota + 1
	// OutcomeTerminal means the sequence reached its fixed point.
	OutcomeTerminal
	// OutcomeMerged means the sequence entered the trajectory of another
	// tracked sequence (AdvanceResult.Target).
	OutcomeMerged
	// OutcomeFailed means the advance step failed or exceeded its
	// resource bound (AdvanceResult.Reason).
	OutcomeFailed
)

// AdvanceResult is the outcome of one external advance step.
type AdvanceResult struct {
	Outcome AdvanceOutcome
	Next    *big.Int // OutcomeNext and OutcomeTerminal
	Target  int64    // OutcomeMerged
	Reason  string   // OutcomeFailed
}

// Advancer computes the next term of a sequence. It is external, opaque,
// possibly slow, and possibly failing; the engine bounds every call with
// a per-call timeout.
type Advancer interface {
	Advance(ctx context.Context, id int64, value *big.Int) (AdvanceResult, error)
}

// Verifier confirms or rejects terminal outcomes before they are
// committed as final. Implemented by external verification scripts.
//
// The bool result distinguishes confirmed (true) from rejected (false); a
// non-nil error means the script itself could not run, which the gate
// also treats as a rejection.
type Verifier interface {
	VerifyTermination(ctx context.Context, r *seq.Record) (bool, error)
	VerifyMerge(ctx context.Context, r *seq.Record, target int64) (bool, error)
}

// fixedPoint is the value at which a sequence terminates.
var fixedPoint = big.NewInt(1)

// Classify refines a raw advance result against the current population.
//
// Advancers that only compute values report OutcomeNext; classification
// promotes a next value of 1 to termination and a next value equal to
// another active sequence's current value to a merge into that sequence.
// The same path classifies externally contributed reservation values, so
// local and external progress go through identical detection.
func Classify(st *store.State, r *seq.Record, raw AdvanceResult) AdvanceResult {
	if raw.Outcome != OutcomeNext || raw.Next == nil {
		return raw
	}
	if raw.Next.Cmp(fixedPoint) == 0 {
		return AdvanceResult{Outcome: OutcomeTerminal, Next: raw.Next}
	}
	if target, ok := collisionTarget(st, r.ID, raw.Next); ok {
		return AdvanceResult{Outcome: OutcomeMerged, Target: target}
	}
	return raw
}

// collisionTarget finds the active sequence whose current value equals v,
// excluding self. Smallest id wins for determinism.
func collisionTarget(st *store.State, self int64, v *big.Int) (int64, bool) {
	for _, other := range st.Live() {
		if other.ID == self {
			continue
		}
		if other.Value.Cmp(v) == 0 {
			return other.ID, true
		}
	}
	return 0, false
}

// FindCollisions scans the population for pairs of active sequences whose
// trajectories have already collided (identical current value). Each pair
// is returned as (target, merger) with the smaller id as the surviving
// target, sorted by target id.
func FindCollisions(st *store.State) [][2]int64 {
	byValue := make(map[string][]int64)
	for _, r := range st.Live() {
		key := r.Value.Text(10)
		byValue[key] = append(byValue[key], r.ID)
	}

	var pairs [][2]int64
	for _, ids := range byValue {
		if len(ids) < 2 {
			continue
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		for _, merger := range ids[1:] {
			pairs = append(pairs, [2]int64{ids[0], merger})
		}
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i][0] != pairs[j][0] {
			return pairs[i][0] < pairs[j][0]
		}
		return pairs[i][1] < pairs[j][1]
	})
	return pairs
}
