package engine

import (
	"container/heap"

	"github.com/example/seqtrack/internal/seq"
)

// HeapEntry wraps one record reference plus the priority key used to
// order it. The store holds the authoritative record; the entry holds the
// only ordering-relevant copy of the key.
//
// An entry may be sabotaged: its payload is replaced by a tombstone while
// the key is left untouched, so heap order is never violated by removal.
type HeapEntry struct {
	key  int64
	id   int64
	rec  *seq.Record
	dead bool
}

// entryHeap implements container/heap ordering: ascending key, ties
// broken by id for determinism.
type entryHeap []*HeapEntry

func (h entryHeap) Len() int { return len(h) }

func (h entryHeap) Less(i, j int) bool {
	if h[i].key != h[j].key {
		return h[i].key < h[j].key
	}
	return h[i].id < h[j].id
}

func (h entryHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *entryHeap) Push(x any) { *h = append(*h, x.(*HeapEntry)) }

func (h *entryHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return e
}

// Heap is the priority structure over live sequence records.
//
// Removal is index-free: instead of tracking heap slots, the byID map
// back-references each id's live entry, and Sabotage flips that entry to
// a tombstone in place. Tombstones are discarded during PopBatch without
// counting toward the batch, trading a little wasted pop work for full
// heap-order correctness.
//
// Not safe for concurrent use: all mutation happens in the cycle's
// single-threaded critical section.
type Heap struct {
	entries entryHeap
	byID    map[int64]*HeapEntry
}

// NewHeap creates an empty heap.
func NewHeap() *Heap {
	return &Heap{byID: make(map[int64]*HeapEntry)}
}

// Push inserts a record under the given priority key. If the id already
// has a live entry it is sabotaged first, so at most one live entry per
// id exists at any time.
func (h *Heap) Push(r *seq.Record, key int64) {
	h.Sabotage(r.ID)
	e := &HeapEntry{key: key, id: r.ID, rec: r}
	heap.Push(&h.entries, e)
	h.byID[r.ID] = e
}

// Sabotage invalidates the live entry for id, if any. The key is never
// altered, so the heap's shape invariant holds without a repair step.
// Calling it for an id with no live entry is a no-op (idempotent drop).
func (h *Heap) Sabotage(id int64) {
	e, ok := h.byID[id]
	if !ok {
		return
	}
	e.dead = true
	e.rec = nil
	delete(h.byID, id)
}

// Rekey re-inserts a record under a freshly computed priority key. The
// old entry becomes a tombstone; the record is never mutated in place
// inside the heap.
func (h *Heap) Rekey(r *seq.Record, key int64) {
	h.Push(r, key)
}

// PopBatch removes and returns up to n live records in non-decreasing
// key order. Tombstones encountered along the way are discarded without
// counting toward n. An empty heap yields an empty batch, not an error.
func (h *Heap) PopBatch(n int) []*seq.Record {
	var out []*seq.Record
	for len(out) < n && h.entries.Len() > 0 {
		e := heap.Pop(&h.entries).(*HeapEntry)
		if e.dead {
			continue
		}
		delete(h.byID, e.id)
		out = append(out, e.rec)
	}
	return out
}

// Live returns the number of non-tombstoned entries.
func (h *Heap) Live() int {
	return len(h.byID)
}

// Len returns the total entry count, tombstones included.
func (h *Heap) Len() int {
	return h.entries.Len()
}
