package engine

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/seqtrack/internal/seq"
)

func rec(id int64) *seq.Record {
	return &seq.Record{ID: id, Value: big.NewInt(id), Length: 1, Status: seq.StatusActive}
}

func TestHeap_PopBatch_OrderedByKey(t *testing.T) {
	h := NewHeap()
	h.Push(rec(276), 30)
	h.Push(rec(552), 10)
	h.Push(rec(564), 20)

	batch := h.PopBatch(3)
	require.Len(t, batch, 3)
	assert.Equal(t, int64(552), batch[0].ID)
	assert.Equal(t, int64(564), batch[1].ID)
	assert.Equal(t, int64(276), batch[2].ID)
}

func TestHeap_PopBatch_TiesBrokenByID(t *testing.T) {
	h := NewHeap()
	h.Push(rec(564), 10)
	h.Push(rec(276), 10)
	h.Push(rec(552), 10)

	batch := h.PopBatch(3)
	require.Len(t, batch, 3)
	assert.Equal(t, int64(276), batch[0].ID)
	assert.Equal(t, int64(552), batch[1].ID)
	assert.Equal(t, int64(564), batch[2].ID)
}

func TestHeap_PopBatch_Empty(t *testing.T) {
	h := NewHeap()
	assert.Empty(t, h.PopBatch(5), "empty heap yields an empty batch, not an error")
}

func TestHeap_PopBatch_FewerLiveThanRequested(t *testing.T) {
	h := NewHeap()
	h.Push(rec(276), 10)
	h.Push(rec(552), 20)
	h.Sabotage(552)

	batch := h.PopBatch(5)
	require.Len(t, batch, 1)
	assert.Equal(t, int64(276), batch[0].ID)
}

func TestHeap_Sabotage_SkippedWithoutCounting(t *testing.T) {
	h := NewHeap()
	h.Push(rec(276), 10)
	h.Push(rec(552), 20)
	h.Push(rec(564), 30)
	h.Sabotage(276)
	h.Sabotage(552)

	// Both tombstones sit at the top; a batch of 1 must skip them and
	// still return the one live record.
	batch := h.PopBatch(1)
	require.Len(t, batch, 1)
	assert.Equal(t, int64(564), batch[0].ID)
}

func TestHeap_Sabotage_Idempotent(t *testing.T) {
	h := NewHeap()
	h.Push(rec(276), 10)

	h.Sabotage(276)
	h.Sabotage(276)  // second call on same id
	h.Sabotage(9999) // id never pushed

	assert.Empty(t, h.PopBatch(1))

	// Sabotage after pop is equally harmless.
	h.Push(rec(552), 5)
	got := h.PopBatch(1)
	require.Len(t, got, 1)
	h.Sabotage(552)
	assert.Empty(t, h.PopBatch(1))
}

func TestHeap_Rekey_OldEntryBecomesTombstone(t *testing.T) {
	h := NewHeap()
	r := rec(276)
	h.Push(r, 10)
	h.Push(rec(552), 20)

	// Re-keying 276 behind 552 must not leave a live copy at key 10.
	h.Rekey(r, 30)

	batch := h.PopBatch(2)
	require.Len(t, batch, 2)
	assert.Equal(t, int64(552), batch[0].ID)
	assert.Equal(t, int64(276), batch[1].ID)
	assert.Equal(t, 0, h.Live())
}

func TestHeap_LiveCountsExcludeTombstones(t *testing.T) {
	h := NewHeap()
	h.Push(rec(276), 10)
	h.Push(rec(552), 20)
	assert.Equal(t, 2, h.Live())

	h.Sabotage(276)
	assert.Equal(t, 1, h.Live())
	assert.Equal(t, 2, h.Len(), "tombstone still occupies a slot")

	h.PopBatch(2)
	assert.Equal(t, 0, h.Live())
	assert.Equal(t, 0, h.Len())
}

// Interleaved push/sabotage/pop sequences must always return exactly
// min(n, live) distinct live records in non-decreasing key order.
func TestHeap_InterleavedOperationsPreserveProperty(t *testing.T) {
	h := NewHeap()
	for i := int64(1); i <= 20; i++ {
		h.Push(rec(i), 100-i) // reverse order insertion
	}
	for i := int64(1); i <= 20; i += 2 {
		h.Sabotage(i) // drop the odd ids
	}
	h.Push(rec(50), 1)
	h.Sabotage(50)
	h.Push(rec(50), 2)

	batch := h.PopBatch(50)
	require.Len(t, batch, 11, "10 even ids plus the re-pushed 50")

	// Keys were 100-i, so surviving even ids pop in descending id order,
	// preceded by the re-pushed 50 at key 2.
	want := []int64{50, 20, 18, 16, 14, 12, 10, 8, 6, 4, 2}
	got := make([]int64, len(batch))
	for i, r := range batch {
		got[i] = r.ID
	}
	assert.Equal(t, want, got)
}
