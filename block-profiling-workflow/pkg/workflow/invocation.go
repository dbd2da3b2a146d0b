package workflow

import (
	"context"
	"strings"

	"github.com/pkg/errors"

	"github.com/karthikiyer56/block-proving-profiler/block-profiling-workflow/pkg/executor"
	"github.com/karthikiyer56/block-proving-profiler/block-profiling-workflow/pkg/interfaces"
	"github.com/karthikiyer56/block-proving-profiler/block-profiling-workflow/pkg/types"
	"github.com/karthikiyer56/block-proving-profiler/helpers"
)

// Invocation builds the prover command line and environment for one unit.
//
//	<cli-bin> --eth-rpc-url <url> --block <id> <action>
//
// The environment always carries ExtraEnv and the dev-mode switch; benchmark
// mode turns on the info-level session summary, trace mode names the
// artifact file.
func Invocation(opts Options, unit types.ExecutionUnit, artifactPath string) interfaces.Invocation {
	env := make(map[string]string, len(opts.ExtraEnv)+3)
	for k, v := range opts.ExtraEnv {
		env[k] = v
	}
	if opts.DevMode {
		env[types.EnvDevMode] = "true"
	}

	switch opts.Mode {
	case types.ModeTrace:
		env[types.EnvTraceFile] = artifactPath
	default:
		env[types.EnvRustLog] = "info"
		env[types.EnvRisc0Info] = "true"
	}

	return interfaces.Invocation{
		Binary: opts.CLIBin,
		Args:   []string{"--eth-rpc-url", opts.RPCURL, "--block", unit.BlockID, opts.Action},
		Env:    env,
	}
}

// CheckProver verifies that the prover binary can be executed.
func CheckProver(path string) error {
	if !helpers.FileExists(path) {
		return errors.Wrapf(types.ErrSetup, "prover binary not found: %s", path)
	}
	if !helpers.IsExecutable(path) {
		return errors.Wrapf(types.ErrSetup, "prover binary is not executable: %s", path)
	}
	return nil
}

// Build runs the build command before any unit. A failed build is a setup
// error; the tail of its stderr is logged.
func Build(ctx context.Context, runner interfaces.Runner, command []string, logger interfaces.Logger) error {
	if len(command) == 0 {
		return nil
	}
	log := logger.WithScope("BUILD")
	log.Info("Running: %s", strings.Join(command, " "))

	_, err := runner.Run(ctx, interfaces.Invocation{Binary: command[0], Args: command[1:]})
	if err != nil {
		var unitErr *types.UnitError
		if errors.As(err, &unitErr) {
			for _, line := range executor.TailLines(unitErr.Stderr, 20) {
				log.Error("  %s", line)
			}
		}
		return errors.Wrapf(types.ErrSetup, "build failed: %v", err)
	}
	log.Info("Build finished")
	return nil
}
