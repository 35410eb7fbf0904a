// Package ledger provides SQLite-backed accounting of committed cycles.
//
// The ledger is operator-facing history, not authoritative state: the
// JSON snapshot owned by internal/store remains the single source of
// truth for the population. The ledger records, per committed cycle, the
// batch accounting plus one event row per touched record, including
// verification rejections and ignored reservations, the anomalies that
// need human follow-up.
//
// # Database Configuration
//
//   - WAL mode: concurrent reads during writes
//   - synchronous=NORMAL: balance durability/performance
//   - busy_timeout=5000: wait for locks up to 5 seconds
//   - foreign_keys=ON: events reference their cycle row
package ledger
