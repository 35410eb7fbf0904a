package engine

import (
	"errors"
	"fmt"
)

// RecordError reports a failure scoped to a single record during a cycle.
//
// Record-level failures are isolated by design: they degrade or revert
// the one record and never escalate to abort the batch. They are carried
// on the cycle summary and the ledger for operator follow-up.
type RecordError struct {
	// Code identifies the failure category.
	Code ErrorCode

	// SeqID identifies the affected sequence.
	SeqID int64

	// CycleToken identifies the cycle in which the failure occurred.
	CycleToken string

	// Message is a human-readable description.
	Message string
}

// ErrorCode categorizes record-level failures.
type ErrorCode string

const (
	// ErrCodeAdvanceFailure indicates the external advance step failed or
	// exceeded its resource bound; the record becomes broken.
	ErrCodeAdvanceFailure ErrorCode = "ADVANCE_FAILURE"

	// ErrCodeVerificationRejected indicates the external verification
	// script rejected a terminal outcome; the record stays active and the
	// discrepancy needs human follow-up.
	ErrCodeVerificationRejected ErrorCode = "VERIFICATION_REJECTED"
)

// Error implements the error interface.
func (e *RecordError) Error() string {
	if e.CycleToken != "" {
		return fmt.Sprintf("%s: seq %d: %s (cycle=%s)", e.Code, e.SeqID, e.Message, e.CycleToken)
	}
	return fmt.Sprintf("%s: seq %d: %s", e.Code, e.SeqID, e.Message)
}

// IsAdvanceFailure reports whether err is an advance-step failure.
// Uses errors.As to handle wrapped errors.
func IsAdvanceFailure(err error) bool {
	var re *RecordError
	if errors.As(err, &re) {
		return re.Code == ErrCodeAdvanceFailure
	}
	return false
}

// IsVerificationRejected reports whether err is a rejected verification.
// Uses errors.As to handle wrapped errors.
func IsVerificationRejected(err error) bool {
	var re *RecordError
	if errors.As(err, &re) {
		return re.Code == ErrCodeVerificationRejected
	}
	return false
}

// NewAdvanceFailure creates a RecordError for a failed advance step.
func NewAdvanceFailure(cycleToken string, seqID int64, reason string) *RecordError {
	return &RecordError{
		Code:       ErrCodeAdvanceFailure,
		SeqID:      seqID,
		CycleToken: cycleToken,
		Message:    reason,
	}
}

// NewVerificationRejected creates a RecordError for a rejected
// termination or merge verification.
func NewVerificationRejected(cycleToken string, seqID int64, detail string) *RecordError {
	return &RecordError{
		Code:       ErrCodeVerificationRejected,
		SeqID:      seqID,
		CycleToken: cycleToken,
		Message:    detail,
	}
}
