package engine

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/seqtrack/internal/seq"
)

// fakeVerifier scripts the verification gate for tests.
type fakeVerifier struct {
	termOK     bool
	termErr    error
	mergeOK    bool
	mergeErr   error
	termCalls  int
	mergeCalls int
}

func (v *fakeVerifier) VerifyTermination(_ context.Context, _ *seq.Record) (bool, error) {
	v.termCalls++
	return v.termOK, v.termErr
}

func (v *fakeVerifier) VerifyMerge(_ context.Context, _ *seq.Record, _ int64) (bool, error) {
	v.mergeCalls++
	return v.mergeOK, v.mergeErr
}

func testGate(v Verifier) *Gate {
	return &Gate{
		Verifier: v,
		Policy:   seq.CheapestFirst{},
		Timeout:  time.Second,
		Now:      func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) },
	}
}

func activeRecord() *seq.Record {
	return &seq.Record{
		ID: 276, Value: big.NewInt(396), Length: 3, Status: seq.StatusActive,
		LastUpdated: time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestGate_Apply_Next(t *testing.T) {
	g := testGate(&fakeVerifier{})
	r := activeRecord()

	applied := g.Apply(context.Background(), r, AdvanceResult{Outcome: OutcomeNext, Next: big.NewInt(696)}, "cycle-1")

	assert.Equal(t, OutcomeNext, applied.Outcome)
	assert.False(t, applied.Rejected)
	assert.Equal(t, seq.StatusActive, r.Status)
	assert.Equal(t, 0, r.Value.Cmp(big.NewInt(696)))
	assert.Equal(t, 4, r.Length)
	assert.NotZero(t, r.Priority, "priority recomputed on every change")
}

func TestGate_Apply_TerminalConfirmed(t *testing.T) {
	v := &fakeVerifier{termOK: true}
	g := testGate(v)
	r := activeRecord()

	applied := g.Apply(context.Background(), r, AdvanceResult{Outcome: OutcomeTerminal, Next: big.NewInt(1)}, "cycle-1")

	assert.Equal(t, 1, v.termCalls)
	assert.False(t, applied.Rejected)
	assert.Equal(t, seq.StatusTerminated, r.Status)
	assert.Equal(t, 0, r.Value.Cmp(big.NewInt(1)))
	assert.Equal(t, 4, r.Length, "the terminal advance still counts a term")
}

func TestGate_Apply_TerminalRejected(t *testing.T) {
	v := &fakeVerifier{termOK: false}
	g := testGate(v)
	r := activeRecord()

	applied := g.Apply(context.Background(), r, AdvanceResult{Outcome: OutcomeTerminal, Next: big.NewInt(1)}, "cycle-1")

	assert.True(t, applied.Rejected)
	require.NotNil(t, applied.Err)
	assert.True(t, IsVerificationRejected(applied.Err))
	assert.Equal(t, seq.StatusActive, r.Status, "record reverts to active")
	assert.Equal(t, 0, r.Value.Cmp(big.NewInt(396)), "value unchanged")
	assert.Equal(t, 3, r.Length, "length unchanged")
}

func TestGate_Apply_VerifierErrorCountsAsRejection(t *testing.T) {
	v := &fakeVerifier{termOK: false, termErr: errors.New("script exploded")}
	g := testGate(v)
	r := activeRecord()

	applied := g.Apply(context.Background(), r, AdvanceResult{Outcome: OutcomeTerminal, Next: big.NewInt(1)}, "cycle-1")

	assert.True(t, applied.Rejected)
	require.NotNil(t, applied.Err)
	assert.Contains(t, applied.Err.Message, "script exploded")
	assert.Equal(t, seq.StatusActive, r.Status)
}

func TestGate_Apply_MergeConfirmed(t *testing.T) {
	v := &fakeVerifier{mergeOK: true}
	g := testGate(v)
	r := activeRecord()

	applied := g.Apply(context.Background(), r, AdvanceResult{Outcome: OutcomeMerged, Target: 552}, "cycle-1")

	assert.Equal(t, 1, v.mergeCalls)
	assert.False(t, applied.Rejected)
	assert.Equal(t, seq.StatusMerged, r.Status)
	assert.Equal(t, int64(552), r.MergedInto)
	assert.Equal(t, 3, r.Length, "merge does not consume a term")
}

func TestGate_Apply_MergeRejected(t *testing.T) {
	v := &fakeVerifier{mergeOK: false}
	g := testGate(v)
	r := activeRecord()

	applied := g.Apply(context.Background(), r, AdvanceResult{Outcome: OutcomeMerged, Target: 552}, "cycle-1")

	assert.True(t, applied.Rejected)
	assert.Equal(t, seq.StatusActive, r.Status)
	assert.Zero(t, r.MergedInto)
}

func TestGate_Apply_FailureBreaksRecord(t *testing.T) {
	g := testGate(&fakeVerifier{})
	r := activeRecord()

	applied := g.Apply(context.Background(), r, AdvanceResult{Outcome: OutcomeFailed, Reason: "cofactor too large"}, "cycle-1")

	assert.Equal(t, OutcomeFailed, applied.Outcome)
	require.NotNil(t, applied.Err)
	assert.True(t, IsAdvanceFailure(applied.Err))
	assert.Equal(t, seq.StatusBroken, r.Status)
	assert.Equal(t, "cofactor too large", r.BrokenReason)
	assert.Equal(t, 3, r.Length, "failed advance leaves value and length alone")
}
