package store

import (
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/example/seqtrack/internal/seq"
)

func TestSummarize(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	st := &State{Records: map[int64]*seq.Record{}}

	a := seq.NewRecord(276, now)
	a.Value = big.NewInt(1_264_460)
	a.Length = 2091
	a.ReservedBy = "Paul Zimmermann"
	st.Records[276] = a

	b := seq.NewRecord(552, now)
	b.Length = 10
	st.Records[552] = b

	done := seq.NewRecord(660, now)
	done.Length = 20
	done.Status = seq.StatusTerminated
	st.Records[660] = done

	s := Summarize(st)
	assert.Equal(t, 3, s.Total)
	assert.Equal(t, 2, s.Live)
	assert.Equal(t, 1, s.Reserved)
	assert.Equal(t, 2, s.ByStatus[seq.StatusActive])
	assert.Equal(t, 1, s.ByStatus[seq.StatusTerminated])
	assert.Equal(t, 2091+10+20, s.TotalLength)
	assert.InDelta(t, float64(2121)/3, s.AvgLength, 0.001)
	assert.Equal(t, 7, s.MaxDigits)
}

func TestSummarize_Empty(t *testing.T) {
	s := Summarize(&State{Records: map[int64]*seq.Record{}})
	assert.Equal(t, 0, s.Total)
	assert.Equal(t, 0.0, s.AvgLength)
}
