package seq

import "time"

// PriorityPolicy derives the scheduling key for a record. Lower keys are
// scheduled sooner. Implementations must be monotonic in the record's cost
// so that advancing a record strictly raises its key: without that, a
// freshly advanced record could starve the rest of the population by being
// re-selected immediately.
type PriorityPolicy interface {
	Priority(r *Record, now time.Time) int64
}

// CheapestFirst weights for the default policy.
const (
	// digitWeight dominates the key: one extra decimal digit in the value
	// outweighs any length difference, since the external advance cost
	// grows with the size of the value, not the count of terms.
	digitWeight = 1_000_000

	// reservedPenalty pushes sequences someone else is already working on
	// toward the back of the schedule.
	reservedPenalty = 500_000_000

	// staleBonusPerDay pulls long-untouched sequences forward so the cheap
	// end of the population cannot starve them forever.
	staleBonusPerDay = 1_000
	// maxStaleDays caps the staleness pull.
	maxStaleDays = 90
)

// CheapestFirst is the default policy: prefer the sequences that are
// cheapest to advance (smallest values first, then shortest), discounted
// by staleness and penalized when reserved by an external holder.
//
// The key strictly increases across an advance: the length term grows by
// one and the digit term never shrinks.
type CheapestFirst struct{}

// Priority implements PriorityPolicy.
func (CheapestFirst) Priority(r *Record, now time.Time) int64 {
	key := int64(r.Digits())*digitWeight + int64(r.Length)

	if !r.LastUpdated.IsZero() {
		days := int64(now.Sub(r.LastUpdated).Hours() / 24)
		if days > maxStaleDays {
			days = maxStaleDays
		}
		if days > 0 {
			key -= days * staleBonusPerDay
		}
	}

	if r.ReservedBy != "" {
		key += reservedPenalty
	}

	return key
}
