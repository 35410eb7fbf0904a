// Package config loads the YAML configuration file and validates its
// structure against an embedded CUE schema before decoding, so a typoed
// key or an out-of-range value fails at startup with a precise message
// instead of surfacing as odd runtime behavior.
package config

import (
	_ "embed"
	"fmt"
	"os"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueyaml "cuelang.org/go/encoding/yaml"
	"gopkg.in/yaml.v3"
)

//go:embed schema.cue
var schemaSource string

// Duration is a YAML-friendly duration parsed from strings like "3m".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the duration as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// StoreConfig locates the persisted population snapshot.
type StoreConfig struct {
	JSONPath     string   `yaml:"json_path"`
	LockWait     Duration `yaml:"lock_wait"`
	PollInterval Duration `yaml:"poll_interval"`
}

// SchedulerConfig tunes the update cycle.
type SchedulerConfig struct {
	BatchSize      int      `yaml:"batch_size"`
	Parallelism    int      `yaml:"parallelism"`
	AdvanceTimeout Duration `yaml:"advance_timeout"`
	VerifyTimeout  Duration `yaml:"verify_timeout"`
	CyclePause     Duration `yaml:"cycle_pause"`
}

// AdvanceConfig names the external advance command.
type AdvanceConfig struct {
	Command string   `yaml:"command"`
	Args    []string `yaml:"args"`
}

// VerifyConfig names the terminal verification scripts. An empty path
// disables verification for that transition kind.
type VerifyConfig struct {
	TerminationScript string `yaml:"termination_script"`
	MergeScript       string `yaml:"merge_script"`
}

// ReservationsConfig points at the collaborator reservation document.
type ReservationsConfig struct {
	URL          string   `yaml:"url"`
	FetchTimeout Duration `yaml:"fetch_timeout"`
	Holder       string   `yaml:"holder"`
}

// LedgerConfig locates the cycle ledger database.
type LedgerConfig struct {
	Path string `yaml:"path"`
}

// Config is the full runtime configuration.
type Config struct {
	Store        StoreConfig        `yaml:"store"`
	Scheduler    SchedulerConfig    `yaml:"scheduler"`
	Advance      AdvanceConfig      `yaml:"advance"`
	Verify       VerifyConfig       `yaml:"verify"`
	Reservations ReservationsConfig `yaml:"reservations"`
	Ledger       LedgerConfig       `yaml:"ledger"`
}

// Default returns the configuration used when keys are omitted.
func Default() Config {
	return Config{
		Store: StoreConfig{
			JSONPath:     "AllSeq.json",
			LockWait:     Duration(3 * time.Minute),
			PollInterval: Duration(time.Second),
		},
		Scheduler: SchedulerConfig{
			BatchSize:      10,
			Parallelism:    4,
			AdvanceTimeout: Duration(10 * time.Minute),
			VerifyTimeout:  Duration(2 * time.Minute),
			CyclePause:     Duration(30 * time.Second),
		},
		Reservations: ReservationsConfig{
			FetchTimeout: Duration(30 * time.Second),
		},
		Ledger: LedgerConfig{
			Path: "ledger.db",
		},
	}
}

// ValidationError reports a configuration file that failed schema or
// semantic validation.
type ValidationError struct {
	Path    string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config %s: %s", e.Path, e.Message)
}

// Load reads, validates, and decodes the configuration file. Values not
// present fall back to Default.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := validateSchema(path, data); err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, &ValidationError{Path: path, Message: err.Error()}
	}
	return cfg, nil
}

// validateSchema checks the raw YAML against the embedded CUE schema.
// The schema's closed structs reject unknown keys, catching typos that
// a plain YAML decode would silently drop.
func validateSchema(path string, data []byte) error {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile config schema: %w", err)
	}
	constraint := schema.LookupPath(cue.ParsePath("#Config"))
	if err := constraint.Err(); err != nil {
		return fmt.Errorf("config schema missing #Config: %w", err)
	}

	file, err := cueyaml.Extract(path, data)
	if err != nil {
		return &ValidationError{Path: path, Message: err.Error()}
	}
	value := ctx.BuildFile(file)
	if err := value.Err(); err != nil {
		return &ValidationError{Path: path, Message: err.Error()}
	}

	if err := constraint.Unify(value).Validate(cue.Concrete(false)); err != nil {
		return &ValidationError{Path: path, Message: err.Error()}
	}
	return nil
}
