package seq

import (
	"fmt"
	"math/big"
	"time"
)

// Status is the lifecycle state of a tracked sequence.
type Status string

const (
	// StatusActive marks a sequence that is still being advanced.
	StatusActive Status = "active"
	// StatusTerminated marks a sequence that reached its fixed point.
	StatusTerminated Status = "terminated"
	// StatusMerged marks a sequence that entered the trajectory of another
	// tracked sequence (Record.MergedInto holds the target id).
	StatusMerged Status = "merged"
	// StatusDropped marks a sequence administratively removed from scheduling.
	StatusDropped Status = "dropped"
	// StatusBroken marks a sequence whose advance step failed
	// (Record.BrokenReason holds the failure detail).
	StatusBroken Status = "broken"
)

// ValidStatuses defines the allowed status values.
var ValidStatuses = map[Status]bool{
	StatusActive:     true,
	StatusTerminated: true,
	StatusMerged:     true,
	StatusDropped:    true,
	StatusBroken:     true,
}

// Terminal reports whether the status is final. Terminal statuses are
// immutable: a record never leaves them and is never rescheduled.
func (s Status) Terminal() bool {
	return s == StatusTerminated || s == StatusMerged || s == StatusDropped || s == StatusBroken
}

// Record is the authoritative state of one tracked sequence.
//
// The id is the sequence's defining starting integer and is immutable.
// Exactly one Record per id exists in the store at any time. The store
// owns the authoritative copy; the scheduler's heap holds only a derived
// ordering key plus a reference.
type Record struct {
	ID           int64     `json:"seq"`
	Value        *big.Int  `json:"value"`
	Length       int       `json:"length"`
	Status       Status    `json:"status"`
	MergedInto   int64     `json:"merged_into,omitempty"`
	BrokenReason string    `json:"broken_reason,omitempty"`
	Priority     int64     `json:"priority"`
	ReservedBy   string    `json:"reserved_by,omitempty"`
	LastUpdated  time.Time `json:"last_updated"`
}

// NewRecord creates an active record for a newly registered starting value.
// The first term of a sequence is the starting value itself.
func NewRecord(id int64, now time.Time) *Record {
	return &Record{
		ID:          id,
		Value:       big.NewInt(id),
		Length:      1,
		Status:      StatusActive,
		LastUpdated: now,
	}
}

// Valid reports whether the record is fully described.
func (r *Record) Valid() bool {
	return r.ID > 0 && r.Value != nil && r.Value.Sign() > 0 && r.Length > 0 && ValidStatuses[r.Status]
}

// Digits returns the decimal digit count of the current value.
// This is the cost proxy used by the default priority policy: the external
// advance step gets more expensive as values grow.
func (r *Record) Digits() int {
	if r.Value == nil {
		return 0
	}
	return len(r.Value.Text(10))
}

// TransitionError reports an attempted status transition that the state
// machine forbids.
type TransitionError struct {
	ID   int64
	From Status
	To   Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("seq %d: illegal status transition %s -> %s", e.ID, e.From, e.To)
}

// TransitionTo moves the record to the given status.
//
// The only legal transitions are Active -> {Active, Terminated, Merged,
// Dropped, Broken}. Terminal statuses are immutable: any transition out of
// one (including to itself) returns a TransitionError.
func (r *Record) TransitionTo(s Status) error {
	if !ValidStatuses[s] {
		return &TransitionError{ID: r.ID, From: r.Status, To: s}
	}
	if r.Status.Terminal() {
		return &TransitionError{ID: r.ID, From: r.Status, To: s}
	}
	r.Status = s
	return nil
}

// Advanced applies one successfully computed term: the value is replaced,
// the length incremented, and the update timestamp refreshed. The caller
// recomputes the priority afterwards.
func (r *Record) Advanced(next *big.Int, now time.Time) {
	r.Value = next
	r.Length++
	r.LastUpdated = now
}

// String renders the fixed-width projection line for the record, the
// format used by the derived text report.
func (r *Record) String() string {
	return fmt.Sprintf("%7d %6d. sz %4d %s", r.ID, r.Length, r.Digits(), r.Status)
}

// ReservationLine renders the reservation-holder listing entry, empty if
// the record is unreserved.
func (r *Record) ReservationLine() string {
	if r.ReservedBy == "" {
		return ""
	}
	return fmt.Sprintf("%7d  %-30s %6d  %4d\n", r.ID, r.ReservedBy, r.Length, r.Digits())
}
