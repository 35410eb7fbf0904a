package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "seqtrack.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_FullConfig(t *testing.T) {
	path := writeConfig(t, `
store:
  json_path: /var/lib/seqtrack/AllSeq.json
  lock_wait: 5m
  poll_interval: 2s
scheduler:
  batch_size: 25
  parallelism: 8
  advance_timeout: 15m
  verify_timeout: 1m
  cycle_pause: 10s
advance:
  command: /usr/local/bin/aliqueit
  args: ["-e"]
verify:
  termination_script: /opt/verify-term.sh
  merge_script: /opt/verify-merge.sh
reservations:
  url: https://example.org/reservations.txt
  fetch_timeout: 20s
  holder: seqtrack-bot
ledger:
  path: /var/lib/seqtrack/ledger.db
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/seqtrack/AllSeq.json", cfg.Store.JSONPath)
	assert.Equal(t, 5*time.Minute, cfg.Store.LockWait.Std())
	assert.Equal(t, 2*time.Second, cfg.Store.PollInterval.Std())
	assert.Equal(t, 25, cfg.Scheduler.BatchSize)
	assert.Equal(t, 8, cfg.Scheduler.Parallelism)
	assert.Equal(t, 15*time.Minute, cfg.Scheduler.AdvanceTimeout.Std())
	assert.Equal(t, "/usr/local/bin/aliqueit", cfg.Advance.Command)
	assert.Equal(t, []string{"-e"}, cfg.Advance.Args)
	assert.Equal(t, "/opt/verify-term.sh", cfg.Verify.TerminationScript)
	assert.Equal(t, "https://example.org/reservations.txt", cfg.Reservations.URL)
	assert.Equal(t, "seqtrack-bot", cfg.Reservations.Holder)
	assert.Equal(t, "/var/lib/seqtrack/ledger.db", cfg.Ledger.Path)
}

func TestLoad_DefaultsFillOmittedKeys(t *testing.T) {
	path := writeConfig(t, `
advance:
  command: aliqueit
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "aliqueit", cfg.Advance.Command)
	assert.Equal(t, "AllSeq.json", cfg.Store.JSONPath)
	assert.Equal(t, 3*time.Minute, cfg.Store.LockWait.Std())
	assert.Equal(t, 10, cfg.Scheduler.BatchSize)
	assert.Equal(t, 4, cfg.Scheduler.Parallelism)
	assert.Equal(t, 30*time.Second, cfg.Reservations.FetchTimeout.Std())
	assert.Equal(t, "ledger.db", cfg.Ledger.Path)
}

func TestLoad_RejectsUnknownKey(t *testing.T) {
	path := writeConfig(t, `
scheduler:
  batchsize: 25
`)

	_, err := Load(path)
	require.Error(t, err)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Error(), path)
}

func TestLoad_RejectsOutOfRangeValues(t *testing.T) {
	for name, body := range map[string]string{
		"zero batch":     "scheduler:\n  batch_size: 0\n",
		"negative batch": "scheduler:\n  batch_size: -3\n",
		"empty command":  "advance:\n  command: \"\"\n",
		"bad duration":   "store:\n  lock_wait: sometimes\n",
		"wrong type":     "scheduler:\n  parallelism: many\n",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, body))
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoad_MalformedYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "store: [\n"))
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
}
