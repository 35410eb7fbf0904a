package seq

import (
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCheapestFirst_SmallerValueWins(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	pol := CheapestFirst{}

	cheap := &Record{ID: 276, Value: big.NewInt(396), Length: 500, Status: StatusActive, LastUpdated: now}
	costly := &Record{ID: 552, Value: big.NewInt(9_282_659), Length: 3, Status: StatusActive, LastUpdated: now}

	assert.Less(t, pol.Priority(cheap, now), pol.Priority(costly, now),
		"fewer digits must dominate regardless of length")
}

func TestCheapestFirst_LengthBreaksDigitTies(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	pol := CheapestFirst{}

	shorter := &Record{ID: 276, Value: big.NewInt(396), Length: 3, Status: StatusActive, LastUpdated: now}
	longer := &Record{ID: 552, Value: big.NewInt(408), Length: 10, Status: StatusActive, LastUpdated: now}

	assert.Less(t, pol.Priority(shorter, now), pol.Priority(longer, now))
}

func TestCheapestFirst_StrictlyIncreasesAcrossAdvance(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	pol := CheapestFirst{}

	r := &Record{ID: 276, Value: big.NewInt(396), Length: 3, Status: StatusActive, LastUpdated: now.Add(-48 * time.Hour)}
	before := pol.Priority(r, now)

	r.Advanced(big.NewInt(696), now)
	after := pol.Priority(r, now)

	assert.Greater(t, after, before,
		"an advanced record must not be re-selected ahead of untouched peers")
}

func TestCheapestFirst_StaleSequencesPullForward(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	pol := CheapestFirst{}

	fresh := &Record{ID: 276, Value: big.NewInt(396), Length: 3, Status: StatusActive, LastUpdated: now}
	stale := &Record{ID: 552, Value: big.NewInt(408), Length: 3, Status: StatusActive, LastUpdated: now.Add(-30 * 24 * time.Hour)}

	assert.Less(t, pol.Priority(stale, now), pol.Priority(fresh, now))
}

func TestCheapestFirst_StalenessBonusIsCapped(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	pol := CheapestFirst{}

	old := &Record{ID: 276, Value: big.NewInt(396), Length: 3, Status: StatusActive, LastUpdated: now.Add(-100 * 24 * time.Hour)}
	older := &Record{ID: 552, Value: big.NewInt(396), Length: 3, Status: StatusActive, LastUpdated: now.Add(-1000 * 24 * time.Hour)}

	assert.Equal(t, pol.Priority(old, now), pol.Priority(older, now))
}

func TestCheapestFirst_ReservedPenalized(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	pol := CheapestFirst{}

	free := &Record{ID: 276, Value: big.NewInt(396), Length: 3, Status: StatusActive, LastUpdated: now}
	held := &Record{ID: 552, Value: big.NewInt(396), Length: 3, Status: StatusActive, LastUpdated: now, ReservedBy: "fivemack"}

	assert.Less(t, pol.Priority(free, now), pol.Priority(held, now))
}
