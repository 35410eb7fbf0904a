package extproc

import (
	"context"
	"fmt"
	"math/big"
	"os/exec"
	"strconv"
	"strings"

	"github.com/example/seqtrack/internal/engine"
)

// AdvanceRunner runs the external advance command. It implements
// engine.Advancer.
type AdvanceRunner struct {
	Command string
	Args    []string
}

var _ engine.Advancer = (*AdvanceRunner)(nil)

// Advance invokes the command with the id and current value appended as
// decimal arguments and parses the reply per the package protocol.
//
// An exec failure or unparseable reply is returned as an error; the
// engine maps it to a broken record without aborting the batch.
func (r *AdvanceRunner) Advance(ctx context.Context, id int64, value *big.Int) (engine.AdvanceResult, error) {
	args := append(append([]string(nil), r.Args...),
		strconv.FormatInt(id, 10), value.Text(10))

	cmd := exec.CommandContext(ctx, r.Command, args...)
	out, err := cmd.Output()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return engine.AdvanceResult{}, fmt.Errorf("advance %d: %w", id, ctxErr)
		}
		if ee, ok := err.(*exec.ExitError); ok && len(ee.Stderr) > 0 {
			return engine.AdvanceResult{}, fmt.Errorf("advance %d: %w: %s", id, err, firstLine(string(ee.Stderr)))
		}
		return engine.AdvanceResult{}, fmt.Errorf("advance %d: %w", id, err)
	}

	return parseAdvanceOutput(id, string(out))
}

func parseAdvanceOutput(id int64, out string) (engine.AdvanceResult, error) {
	line := firstLine(out)
	if line == "" {
		return engine.AdvanceResult{}, fmt.Errorf("advance %d: empty reply", id)
	}

	fields := strings.Fields(line)
	if fields[0] == "MERGE" {
		if len(fields) != 2 {
			return engine.AdvanceResult{}, fmt.Errorf("advance %d: malformed merge reply %q", id, line)
		}
		target, err := strconv.ParseInt(fields[1], 10, 64)
		if err != nil {
			return engine.AdvanceResult{}, fmt.Errorf("advance %d: malformed merge target %q", id, fields[1])
		}
		return engine.AdvanceResult{Outcome: engine.OutcomeMerged, Target: target}, nil
	}

	next, ok := new(big.Int).SetString(fields[0], 10)
	if !ok || len(fields) != 1 {
		return engine.AdvanceResult{}, fmt.Errorf("advance %d: malformed reply %q", id, line)
	}
	return engine.AdvanceResult{Outcome: engine.OutcomeNext, Next: next}, nil
}

// firstLine returns the first non-blank line, trimmed.
func firstLine(s string) string {
	for _, line := range strings.Split(s, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
