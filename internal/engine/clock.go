package engine

import "sync/atomic"

// Clock is the monotonic cycle counter. Every update and reservation
// cycle is stamped with a strictly increasing number so ledger rows and
// log lines order deterministically regardless of wall time.
//
// Thread-safety: safe for concurrent use (atomic operations), though the
// single-writer cycle design means one goroutine typically calls Next().
type Clock struct {
	num atomic.Int64
}

// NewClock creates a clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a clock resuming from a specific cycle number, for
// processes restarting against an existing ledger.
func NewClockAt(start int64) *Clock {
	c := &Clock{}
	c.num.Store(start)
	return c
}

// Next returns the next cycle number and increments the clock.
func (c *Clock) Next() int64 {
	return c.num.Add(1)
}

// Current returns the current cycle number without incrementing.
func (c *Clock) Current() int64 {
	return c.num.Load()
}
