// Package store provides durable storage for the tracked sequence
// population.
//
// The authoritative representation is a single JSON snapshot file, read
// fully on load and rewritten fully on commit. Commits follow a
// write-to-temp-then-rename discipline so the on-disk file always reflects
// either the pre-commit or the post-commit state, never an interleaving.
//
// Write access is gated by a companion lock file shared with external
// contributors. Acquisition blocks up to a configured maximum wait and is
// released on every exit path; on timeout the whole operation fails with a
// LockTimeoutError and performs no partial write.
//
// A derived plain-text projection is rewritten on every commit for
// external consumption. It is never read back into the model.
package store
