package extproc

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"

	"github.com/example/seqtrack/internal/engine"
	"github.com/example/seqtrack/internal/seq"
)

// VerifyRunner shells out to verification scripts before a terminal
// transition is committed. It implements engine.Verifier.
//
// A nil or empty script path confirms unconditionally, so operators can
// enable verification per transition kind.
type VerifyRunner struct {
	TerminationScript string
	MergeScript       string
}

var _ engine.Verifier = (*VerifyRunner)(nil)

// VerifyTermination confirms that the record's current value really
// reaches a fixed point. Exit 0 confirms, exit 1 rejects, anything
// else is an error.
func (r *VerifyRunner) VerifyTermination(ctx context.Context, rec *seq.Record) (bool, error) {
	if r.TerminationScript == "" {
		return true, nil
	}
	return runVerdict(ctx, r.TerminationScript,
		strconv.FormatInt(rec.ID, 10), rec.Value.Text(10))
}

// VerifyMerge confirms that the record's trajectory joins the target
// sequence. Exit 0 confirms, exit 1 rejects, anything else is an error.
func (r *VerifyRunner) VerifyMerge(ctx context.Context, rec *seq.Record, target int64) (bool, error) {
	if r.MergeScript == "" {
		return true, nil
	}
	return runVerdict(ctx, r.MergeScript,
		strconv.FormatInt(rec.ID, 10), strconv.FormatInt(target, 10), rec.Value.Text(10))
}

func runVerdict(ctx context.Context, script string, args ...string) (bool, error) {
	cmd := exec.CommandContext(ctx, script, args...)
	err := cmd.Run()
	if err == nil {
		return true, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return false, fmt.Errorf("verify %s: %w", script, ctxErr)
	}
	if ee, ok := err.(*exec.ExitError); ok && ee.ExitCode() == 1 {
		return false, nil
	}
	return false, fmt.Errorf("verify %s: %w", script, err)
}
