// Package extproc adapts external collaborator programs to the engine's
// Advancer and Verifier interfaces.
//
// Both adapters treat their programs as opaque, possibly slow, possibly
// failing: every invocation is bounded by the caller's context (the
// engine adds per-call timeouts), and a failure degrades only the record
// being processed, never the batch.
//
// Advance protocol: the command is invoked with the sequence id and its
// current value as trailing decimal arguments. The first non-blank line
// of stdout is either the next term as a decimal integer, or
// "MERGE <id>" naming the tracked sequence whose trajectory was entered.
// Any other output, or a non-zero exit, is an advance failure.
//
// Verification protocol: the script exits 0 to confirm the outcome and 1
// to reject it. Any other exit, or a failure to run at all, is reported
// as an error and treated by the gate as a rejection.
package extproc
