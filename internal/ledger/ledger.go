package ledger

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/example/seqtrack/internal/engine"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 1 - Initial schema (cycles + events)
const currentSchemaVersion = 1

// Ledger is the SQLite-backed cycle journal. It implements
// engine.Journal.
type Ledger struct {
	db *sql.DB
}

var _ engine.Journal = (*Ledger)(nil)

// Open creates or opens the ledger database at the given path, applying
// required pragmas and the schema. Idempotent.
func Open(path string) (*Ledger, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect ledger: %w", err)
	}

	// SQLite supports one writer at a time; keep a single connection to
	// avoid SQLITE_BUSY under concurrent journal writes.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply pragmas: %w", err)
	}
	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Ledger{db: db}, nil
}

// Close closes the database connection.
func (l *Ledger) Close() error {
	if l.db == nil {
		return nil
	}
	return l.db.Close()
}

// RecordCycle inserts the accounting row for one committed cycle.
// Duplicate tokens are silently ignored so a retried journal write stays
// idempotent.
func (l *Ledger) RecordCycle(ctx context.Context, c engine.CycleSummary) error {
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO cycles
		(token, num, kind, started_at, finished_at, popped, advanced, terminated, merged, broken, dropped, rejected)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(token) DO NOTHING
	`,
		c.Token,
		c.Num,
		c.Kind,
		c.StartedAt.UTC().Format(time.RFC3339),
		c.FinishedAt.UTC().Format(time.RFC3339),
		c.Popped,
		c.Advanced,
		c.Terminated,
		c.Merged,
		c.Broken,
		c.Dropped,
		c.Rejected,
	)
	if err != nil {
		return fmt.Errorf("record cycle: %w", err)
	}
	return nil
}

// RecordEvent inserts one per-record event row.
func (l *Ledger) RecordEvent(ctx context.Context, ev engine.CycleEvent) error {
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO events (cycle_token, seq_id, kind, detail, created_at)
		VALUES (?, ?, ?, ?, ?)
	`,
		ev.CycleToken,
		ev.SeqID,
		ev.Kind,
		ev.Detail,
		ev.At.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("record event: %w", err)
	}
	return nil
}

// LastCycleNum returns the highest committed cycle number, so a
// restarting process can resume its cycle clock. Zero when the ledger is
// empty.
func (l *Ledger) LastCycleNum(ctx context.Context) (int64, error) {
	var num sql.NullInt64
	if err := l.db.QueryRowContext(ctx, `SELECT MAX(num) FROM cycles`).Scan(&num); err != nil {
		return 0, fmt.Errorf("last cycle num: %w", err)
	}
	if !num.Valid {
		return 0, nil
	}
	return num.Int64, nil
}

// Anomalies returns the most recent events needing human follow-up
// (verification rejections and ignored reservations), newest first.
func (l *Ledger) Anomalies(ctx context.Context, limit int) ([]engine.CycleEvent, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT cycle_token, seq_id, kind, detail, created_at
		FROM events
		WHERE kind IN (?, ?)
		ORDER BY id DESC
		LIMIT ?
	`, engine.EventVerificationRejected, engine.EventReservationIgnored, limit)
	if err != nil {
		return nil, fmt.Errorf("query anomalies: %w", err)
	}
	defer rows.Close()

	var out []engine.CycleEvent
	for rows.Next() {
		var ev engine.CycleEvent
		var at string
		if err := rows.Scan(&ev.CycleToken, &ev.SeqID, &ev.Kind, &ev.Detail, &at); err != nil {
			return nil, fmt.Errorf("scan anomaly: %w", err)
		}
		if ts, err := time.Parse(time.RFC3339, at); err == nil {
			ev.At = ts
		}
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate anomalies: %w", err)
	}
	return out, nil
}

// CycleCount returns the number of committed cycles, for status output.
func (l *Ledger) CycleCount(ctx context.Context) (int64, error) {
	var n int64
	if err := l.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM cycles`).Scan(&n); err != nil {
		return 0, fmt.Errorf("cycle count: %w", err)
	}
	return n, nil
}

// applyPragmas sets required SQLite configuration.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("execute %q: %w", pragma, err)
		}
	}
	return nil
}

// applySchema creates tables if they don't exist and stamps the schema
// version. Idempotent.
func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("execute schema: %w", err)
	}
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}
	if version < currentSchemaVersion {
		if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
			return fmt.Errorf("set user_version: %w", err)
		}
	}
	return nil
}
