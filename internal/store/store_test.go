package store

import (
	"context"
	"errors"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/seqtrack/internal/seq"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	s, err := New(Options{
		JSONPath: filepath.Join(dir, "AllSeq.json"),
		LockWait: 200 * time.Millisecond,
		Poll:     10 * time.Millisecond,
		Now:      func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) },
	})
	require.NoError(t, err)
	return s
}

func testRecords() []*seq.Record {
	huge, _ := new(big.Int).SetString("9282659869337810463343274964228739898989373217", 10)
	return []*seq.Record{
		{ID: 276, Value: huge, Length: 2091, Status: seq.StatusActive, ReservedBy: "Paul Zimmermann",
			LastUpdated: time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)},
		{ID: 552, Value: big.NewInt(1), Length: 1079, Status: seq.StatusTerminated,
			LastUpdated: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)},
		{ID: 564, Value: big.NewInt(123456), Length: 3617, Status: seq.StatusActive,
			LastUpdated: time.Date(2026, 2, 15, 0, 0, 0, 0, time.UTC)},
	}
}

func seedStore(t *testing.T, s *Store) {
	t.Helper()
	err := s.WithLock(context.Background(), func(st *State) error {
		for _, r := range testRecords() {
			st.Records[r.ID] = r
		}
		return nil
	})
	require.NoError(t, err)
}

func TestNew_RejectsSharedPaths(t *testing.T) {
	_, err := New(Options{JSONPath: "x.json", TextPath: "x.json"})
	require.Error(t, err)

	_, err = New(Options{})
	require.Error(t, err)
}

func TestStore_LoadMissingFile_EmptyPopulation(t *testing.T) {
	s := newTestStore(t)

	st, err := s.Load()
	require.NoError(t, err)
	assert.Empty(t, st.Records)
}

func TestStore_WithLock_CommitRoundTrip(t *testing.T) {
	s := newTestStore(t)
	seedStore(t, s)

	st, err := s.Load()
	require.NoError(t, err)
	require.Len(t, st.Records, 3)

	r := st.Records[276]
	require.NotNil(t, r)
	assert.Equal(t, 2091, r.Length)
	assert.Equal(t, seq.StatusActive, r.Status)
	assert.Equal(t, "Paul Zimmermann", r.ReservedBy)
	assert.Equal(t, 46, r.Digits())

	// Lock file must be gone after WithLock returns.
	_, err = os.Stat(s.jsonPath + ".lock")
	assert.True(t, os.IsNotExist(err))
}

func TestStore_WithLock_FnErrorLeavesFileUntouched(t *testing.T) {
	s := newTestStore(t)
	seedStore(t, s)

	before, err := os.ReadFile(s.jsonPath)
	require.NoError(t, err)

	boom := errors.New("boom")
	err = s.WithLock(context.Background(), func(st *State) error {
		st.Records[552].Length = 9999
		delete(st.Records, 276)
		return boom
	})
	require.ErrorIs(t, err, boom)

	after, err := os.ReadFile(s.jsonPath)
	require.NoError(t, err)
	assert.Equal(t, before, after, "failed fn must not commit")

	// The lock must still be released.
	_, err = os.Stat(s.jsonPath + ".lock")
	assert.True(t, os.IsNotExist(err))
}

func TestStore_WithLock_TimesOutCleanly(t *testing.T) {
	s := newTestStore(t)

	lockPath := s.jsonPath + ".lock"
	require.NoError(t, os.WriteFile(lockPath, []byte("424242\n"), 0o644))

	err := s.WithLock(context.Background(), func(st *State) error {
		t.Fatal("fn must not run when the lock cannot be acquired")
		return nil
	})
	require.Error(t, err)
	assert.True(t, IsLockTimeout(err))

	var le *LockTimeoutError
	require.ErrorAs(t, err, &le)
	assert.Equal(t, lockPath, le.Path)

	// The foreign lock file must not have been removed.
	_, err = os.Stat(lockPath)
	assert.NoError(t, err)
}

func TestStore_WithLock_MutualExclusion(t *testing.T) {
	s := newTestStore(t)
	s.lock.wait = 2 * time.Second

	entered := make(chan struct{})
	resume := make(chan struct{})

	go func() {
		_ = s.WithLock(context.Background(), func(st *State) error {
			st.Records[276] = seq.NewRecord(276, time.Now())
			close(entered)
			<-resume
			return nil
		})
	}()

	<-entered
	close(resume)

	// The second writer waits, then observes the post-first-commit state.
	err := s.WithLock(context.Background(), func(st *State) error {
		require.Contains(t, st.Records, int64(276), "second writer must see first commit")
		st.Records[552] = seq.NewRecord(552, time.Now())
		return nil
	})
	require.NoError(t, err)

	st, err := s.Load()
	require.NoError(t, err)
	assert.Len(t, st.Records, 2)
}

func TestStore_Load_CorruptJSON(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, os.WriteFile(s.jsonPath, []byte("{not json"), 0o644))

	_, err := s.Load()
	require.Error(t, err)
	assert.True(t, IsCorruptStore(err))
}

func TestStore_Load_DuplicateRecordIsCorrupt(t *testing.T) {
	s := newTestStore(t)
	body := `{"updated_at":"2026-03-01T12:00:00Z","records":[
		{"seq":276,"value":276,"length":1,"status":"active","priority":0,"last_updated":"2026-03-01T12:00:00Z"},
		{"seq":276,"value":276,"length":1,"status":"active","priority":0,"last_updated":"2026-03-01T12:00:00Z"}]}`
	require.NoError(t, os.WriteFile(s.jsonPath, []byte(body), 0o644))

	_, err := s.Load()
	require.Error(t, err)
	assert.True(t, IsCorruptStore(err))
}

func TestStore_Load_InvalidRecordIsCorrupt(t *testing.T) {
	s := newTestStore(t)
	body := `{"updated_at":"2026-03-01T12:00:00Z","records":[
		{"seq":276,"value":276,"length":0,"status":"active","priority":0,"last_updated":"2026-03-01T12:00:00Z"}]}`
	require.NoError(t, os.WriteFile(s.jsonPath, []byte(body), 0o644))

	_, err := s.Load()
	require.Error(t, err)
	assert.True(t, IsCorruptStore(err))
}

func TestStore_CrashDebrisDoesNotCorruptCommittedState(t *testing.T) {
	s := newTestStore(t)
	seedStore(t, s)

	// Simulate a writer that died between "write new state" and rename:
	// a half-written temp file next to the snapshot.
	debris := s.jsonPath + ".tmp-crashed"
	require.NoError(t, os.WriteFile(debris, []byte(`{"records":[{"seq":9`), 0o644))

	st, err := s.Load()
	require.NoError(t, err)
	assert.Len(t, st.Records, 3, "load must only ever see the last fully committed snapshot")
}

func TestState_Live(t *testing.T) {
	st := &State{Records: map[int64]*seq.Record{}}
	for _, r := range testRecords() {
		st.Records[r.ID] = r
	}

	live := st.Live()
	require.Len(t, live, 2)
	assert.Equal(t, int64(276), live[0].ID)
	assert.Equal(t, int64(564), live[1].ID)
}

func TestProjection_Golden(t *testing.T) {
	s := newTestStore(t)
	seedStore(t, s)

	content, err := os.ReadFile(s.TextPath())
	require.NoError(t, err)

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "projection", content)
}
