// Package engine implements the update-cycle scheduler over the tracked
// sequence population.
//
// ARCHITECTURE:
//
// One cycle = one lock hold. Each cycle acquires the store's exclusive
// lock, loads the population, builds the priority heap, pops a batch of
// the highest-priority live sequences, drives each through the external
// advance step, classifies the outcomes, and commits all resulting state
// changes in a single atomic write before releasing the lock. The
// reservation merger uses the same lock, so the two writers are mutually
// exclusive by construction.
//
// The heap uses lazy invalidation: dropping or re-keying a sequence flips
// its live entry to a tombstone in place instead of deleting it. The
// entry's priority key is never altered, so the heap shape invariant
// holds without any repair step; PopBatch discards tombstones as it meets
// them.
//
// Per-record external advances run with bounded parallelism (they are
// independent and side-effect-free on shared state until commit), but all
// heap and store mutations are confined to the single-threaded critical
// section. A failure advancing one record never aborts the batch: the
// record degrades to broken and the rest proceed.
//
// Terminated and merged outcomes are not committed directly. They pass
// through the verification gate first; a rejected verification leaves the
// record active with an unchanged value and is recorded as an anomaly.
package engine
