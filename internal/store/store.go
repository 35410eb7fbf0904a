package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/example/seqtrack/internal/seq"
)

// Default lock behavior. The poll interval matches the external lock file
// protocol's expectations (contributors poll at second granularity).
const (
	DefaultLockWait     = 3 * time.Minute
	DefaultPollInterval = time.Second
)

// State is one fully loaded copy of the population. It is only ever
// mutated inside a WithLock critical section; the commit at the end of
// that section is what makes mutations durable.
type State struct {
	Records    map[int64]*seq.Record
	ReservedAt time.Time // last successful reservation sync
}

// Live returns the active records, sorted by id for determinism.
func (st *State) Live() []*seq.Record {
	out := make([]*seq.Record, 0, len(st.Records))
	for _, r := range st.Records {
		if r.Status == seq.StatusActive {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// snapshot is the on-disk form: records held as a flat list sorted by id.
type snapshot struct {
	UpdatedAt  string        `json:"updated_at"`
	ReservedAt string        `json:"reserved_at,omitempty"`
	Records    []*seq.Record `json:"records"`
}

const timestampFormat = time.RFC3339

// Options configures a Store.
type Options struct {
	JSONPath string        // authoritative snapshot (required)
	TextPath string        // derived projection; "" derives from JSONPath
	LockPath string        // lock file; "" derives from JSONPath
	LockWait time.Duration // maximum wait for the lock (0: DefaultLockWait)
	Poll     time.Duration // lock poll interval (0: DefaultPollInterval)
	Now      func() time.Time
}

// Store owns the snapshot file, the lock discipline, and the projection.
type Store struct {
	jsonPath string
	textPath string
	lock     locker
	now      func() time.Time
}

// New creates a Store over the given snapshot file. The file need not
// exist yet: a missing snapshot loads as an empty population.
func New(opts Options) (*Store, error) {
	if opts.JSONPath == "" {
		return nil, fmt.Errorf("store: snapshot path required")
	}
	textPath := opts.TextPath
	if textPath == "" {
		ext := filepath.Ext(opts.JSONPath)
		textPath = opts.JSONPath[:len(opts.JSONPath)-len(ext)] + ".txt"
	}
	if textPath == opts.JSONPath {
		return nil, fmt.Errorf("store: snapshot and projection paths must differ")
	}
	lockPath := opts.LockPath
	if lockPath == "" {
		lockPath = opts.JSONPath + ".lock"
	}
	wait := opts.LockWait
	if wait == 0 {
		wait = DefaultLockWait
	}
	poll := opts.Poll
	if poll == 0 {
		poll = DefaultPollInterval
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Store{
		jsonPath: opts.JSONPath,
		textPath: textPath,
		lock:     locker{path: lockPath, wait: wait, poll: poll},
		now:      now,
	}, nil
}

// Path returns the authoritative snapshot path.
func (s *Store) Path() string { return s.jsonPath }

// TextPath returns the derived projection path.
func (s *Store) TextPath() string { return s.textPath }

// Load reads the snapshot without taking the lock. Use for read-only
// consumers (status, reports); writers must go through WithLock.
func (s *Store) Load() (*State, error) {
	return s.load()
}

// WithLock acquires the exclusive lock, loads the current state, runs fn
// against it, and commits the result atomically if fn succeeds. The lock
// is released on every exit path, including fn failure and load failure.
// A failed fn leaves the on-disk state untouched.
func (s *Store) WithLock(ctx context.Context, fn func(st *State) error) error {
	if err := s.lock.acquire(ctx); err != nil {
		return err
	}
	defer func() {
		if err := s.lock.release(); err != nil {
			slog.Error("releasing store lock", "error", err)
		}
	}()

	st, err := s.load()
	if err != nil {
		return err
	}
	if err := fn(st); err != nil {
		return err
	}
	return s.commit(st)
}

func (s *Store) load() (*State, error) {
	data, err := os.ReadFile(s.jsonPath)
	if os.IsNotExist(err) {
		return &State{Records: make(map[int64]*seq.Record)}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, &CorruptStoreError{Path: s.jsonPath, Err: err}
	}

	st := &State{Records: make(map[int64]*seq.Record, len(snap.Records))}
	for _, r := range snap.Records {
		if r == nil || !r.Valid() {
			return nil, &CorruptStoreError{Path: s.jsonPath, Err: fmt.Errorf("invalid record in snapshot")}
		}
		if _, dup := st.Records[r.ID]; dup {
			return nil, &CorruptStoreError{Path: s.jsonPath, Err: fmt.Errorf("duplicate record for seq %d", r.ID)}
		}
		st.Records[r.ID] = r
	}
	if snap.ReservedAt != "" {
		at, err := time.Parse(timestampFormat, snap.ReservedAt)
		if err != nil {
			return nil, &CorruptStoreError{Path: s.jsonPath, Err: fmt.Errorf("reserved_at: %w", err)}
		}
		st.ReservedAt = at
	}
	return st, nil
}

// commit persists the state: snapshot first, then the derived projection.
// Both use temp-write-then-rename so a crash at any point leaves the last
// fully committed file in place.
func (s *Store) commit(st *State) error {
	records := make([]*seq.Record, 0, len(st.Records))
	for _, r := range st.Records {
		records = append(records, r)
	}
	sort.Slice(records, func(i, j int) bool { return records[i].ID < records[j].ID })

	snap := snapshot{
		UpdatedAt: s.now().UTC().Format(timestampFormat),
		Records:   records,
	}
	if !st.ReservedAt.IsZero() {
		snap.ReservedAt = st.ReservedAt.UTC().Format(timestampFormat)
	}

	data, err := json.MarshalIndent(&snap, "", " ")
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	if err := writeAtomic(s.jsonPath, append(data, '\n')); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}

	if err := writeAtomic(s.textPath, projection(records)); err != nil {
		return fmt.Errorf("write projection: %w", err)
	}
	return nil
}

// writeAtomic writes data to a temp file in the target's directory, syncs
// it, and renames it over the target.
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
