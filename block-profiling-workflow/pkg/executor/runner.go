// =============================================================================
// pkg/executor/runner.go - Prover Process Runner
// =============================================================================
//
// ProcessRunner runs the prover binary as a child process:
//   - the environment is the parent's, with the invocation's keys overridden
//   - stdout and stderr are captured in full
//   - a non-zero exit, a signal death or a cancelled context is a *UnitError
//
// =============================================================================

package executor

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/pkg/errors"

	"github.com/karthikiyer56/block-proving-profiler/block-profiling-workflow/pkg/interfaces"
	"github.com/karthikiyer56/block-proving-profiler/block-profiling-workflow/pkg/types"
)

// killGrace is how long a cancelled prover gets between SIGTERM and SIGKILL.
const killGrace = 5 * time.Second

// ProcessRunner implements interfaces.Runner with os/exec.
type ProcessRunner struct {
	// Dir is the working directory of the child; empty means the current one.
	Dir string
}

// NewProcessRunner creates a ProcessRunner.
func NewProcessRunner(dir string) *ProcessRunner {
	return &ProcessRunner{Dir: dir}
}

// Run executes inv and waits for it.
func (r *ProcessRunner) Run(ctx context.Context, inv interfaces.Invocation) (interfaces.Output, error) {
	var stdout, stderr bytes.Buffer

	cmd := exec.CommandContext(ctx, inv.Binary, inv.Args...)
	cmd.Dir = r.Dir
	cmd.Env = MergeEnv(os.Environ(), inv.Env)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.Cancel = func() error {
		return cmd.Process.Signal(syscall.SIGTERM)
	}
	cmd.WaitDelay = killGrace

	err := cmd.Run()
	out := interfaces.Output{Stdout: stdout.Bytes(), Stderr: stderr.Bytes()}
	if err == nil {
		return out, nil
	}

	exitCode := -1
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		exitCode = exitErr.ExitCode()
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		err = errors.Wrap(ctxErr, "prover interrupted")
	}

	return out, &types.UnitError{
		ExitCode: exitCode,
		Stderr:   stderr.String(),
		Err:      err,
	}
}

var _ interfaces.Runner = (*ProcessRunner)(nil)

// MergeEnv returns base with every key in overrides replaced.
// Overrides are appended in key order so the result is deterministic.
func MergeEnv(base []string, overrides map[string]string) []string {
	env := make([]string, 0, len(base)+len(overrides))
	for _, kv := range base {
		key, _, _ := strings.Cut(kv, "=")
		if _, replaced := overrides[key]; replaced {
			continue
		}
		env = append(env, kv)
	}

	keys := make([]string, 0, len(overrides))
	for k := range overrides {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		env = append(env, k+"="+overrides[k])
	}
	return env
}

// TailLines returns at most n trailing non-empty lines of s.
func TailLines(s string, n int) []string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	var out []string
	for i := len(lines) - 1; i >= 0 && len(out) < n; i-- {
		if strings.TrimSpace(lines[i]) == "" {
			continue
		}
		out = append(out, lines[i])
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}
