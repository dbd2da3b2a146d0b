package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/karthikiyer56/block-proving-profiler/block-profiling-workflow/pkg/executor"
	"github.com/karthikiyer56/block-proving-profiler/block-profiling-workflow/pkg/types"
	"github.com/karthikiyer56/block-proving-profiler/block-profiling-workflow/pkg/workflow"
)

// testWorkspace lays out an input directory with the given blocks and a
// fake prover script.
type testWorkspace struct {
	dir      string
	inputDir string
	prover   string
	report   string
}

func newTestWorkspace(t *testing.T, proverBody string, blocks ...string) testWorkspace {
	t.Helper()
	dir := t.TempDir()
	ws := testWorkspace{
		dir:      dir,
		inputDir: filepath.Join(dir, "cache"),
		prover:   filepath.Join(dir, "cli"),
		report:   filepath.Join(dir, "out", "report.csv"),
	}
	require.NoError(t, os.MkdirAll(ws.inputDir, 0755))
	for _, b := range blocks {
		require.NoError(t, os.WriteFile(filepath.Join(ws.inputDir, "input_"+b+".json"), []byte("{}"), 0644))
	}
	require.NoError(t, os.WriteFile(ws.prover, []byte("#!/bin/sh\n"+proverBody+"\n"), 0755))
	return ws
}

func (ws testWorkspace) args(mode string, extra ...string) []string {
	args := []string{
		mode,
		"--cli-bin", ws.prover,
		"--input-dir", ws.inputDir,
		"--report", ws.report,
		"--skip-build",
	}
	return append(args, extra...)
}

func TestExecute_BenchmarkRun(t *testing.T) {
	ws := newTestWorkspace(t, `echo "execution time: 250ms"; echo "1000 total cycles"`, "0x02", "0x01")

	var stdout, stderr bytes.Buffer
	code := execute(context.Background(), ws.args("benchmark", "--no-metadata", "--jobs", "2"), &stdout, &stderr)
	require.Equal(t, ExitSuccess, code, stderr.String())

	data, err := os.ReadFile(ws.report)
	require.NoError(t, err)
	assert.Equal(t,
		"block_number,execution_time,total_cycles,user_cycles,paging_cycles,bigint_cycles,keccak_calls,gas_used\n"+
			"N/A,0.250000,1000,N/A,N/A,N/A,N/A,N/A\n"+
			"N/A,0.250000,1000,N/A,N/A,N/A,N/A,N/A\n",
		string(data))
	assert.Contains(t, stdout.String(), "RUN COMPLETE")
}

func TestExecute_AllUnitsFailIsRuntimeError(t *testing.T) {
	ws := newTestWorkspace(t, `echo "guest panicked" >&2; exit 1`, "0x01", "0x02")

	var stdout, stderr bytes.Buffer
	code := execute(context.Background(), ws.args("trace", "--scratch-dir", filepath.Join(ws.dir, "scratch")), &stdout, &stderr)
	assert.Equal(t, ExitRuntimeError, code)

	data, err := os.ReadFile(ws.report)
	require.NoError(t, err)
	assert.Equal(t, "name,count,min cpg,median cpg,max cpg,min cycles,median cycles,max cycles,total cycles\n", string(data))
	assert.Contains(t, stdout.String(), "guest panicked")
}

func TestExecute_EmptyBatchSucceeds(t *testing.T) {
	ws := newTestWorkspace(t, `exit 0`)

	var stdout, stderr bytes.Buffer
	code := execute(context.Background(), ws.args("trace"), &stdout, &stderr)
	assert.Equal(t, ExitSuccess, code, stderr.String())
	assert.FileExists(t, ws.report)
}

func TestExecute_InterruptedRun(t *testing.T) {
	ws := newTestWorkspace(t, `echo "execution time: 1s"`, "0x01", "0x02")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var stdout, stderr bytes.Buffer
	code := execute(ctx, ws.args("benchmark", "--no-metadata"), &stdout, &stderr)
	assert.Equal(t, ExitInterrupted, code)
	assert.Contains(t, stdout.String(), "RUN INTERRUPTED")
	assert.FileExists(t, ws.report)
}

func TestExecute_SetupErrors(t *testing.T) {
	ws := newTestWorkspace(t, `exit 0`, "0x01")

	tests := []struct {
		name string
		args []string
	}{
		{name: "unknown subcommand", args: []string{"replay"}},
		{name: "unknown flag", args: []string{"trace", "--workers", "3"}},
		{name: "missing input dir", args: ws.args("benchmark", "--input-dir", filepath.Join(ws.dir, "absent"))},
		{name: "missing prover", args: ws.args("benchmark", "--cli-bin", filepath.Join(ws.dir, "absent"))},
		{name: "zero jobs", args: ws.args("trace", "--jobs", "0")},
		{name: "failing build", args: []string{"benchmark", "--cli-bin", ws.prover, "--input-dir", ws.inputDir,
			"--report", ws.report, "--config", writeConfig(t, "[prover]\nbuild_command = [\"false\"]\n")}},
		{name: "bad config file", args: ws.args("trace", "--config", writeConfig(t, "[run\n"))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			assert.Equal(t, ExitConfigError, execute(context.Background(), tt.args, &stdout, &stderr))
		})
	}
}

func TestExecute_DryRun(t *testing.T) {
	ws := newTestWorkspace(t, `echo should-not-run > "$0.ran"`, "0xbb", "0xaa")

	var stdout, stderr bytes.Buffer
	code := execute(context.Background(), ws.args("trace", "--dry-run"), &stdout, &stderr)
	require.Equal(t, ExitSuccess, code, stderr.String())

	out := stdout.String()
	assert.Contains(t, out, "DRY RUN COMPLETE")
	assert.Less(t, bytes.Index(stdout.Bytes(), []byte("0xaa")), bytes.Index(stdout.Bytes(), []byte("0xbb")))
	assert.NoFileExists(t, ws.prover+".ran")
	assert.NoFileExists(t, ws.report)
}

func TestExitCode(t *testing.T) {
	units := []types.ExecutionUnit{{BlockID: "0x01"}, {BlockID: "0x02"}}

	tests := []struct {
		name   string
		result *workflow.Result
		want   int
	}{
		{name: "empty batch", result: &workflow.Result{}, want: ExitSuccess},
		{name: "partial failure", result: &workflow.Result{Execution: &executor.RunSummary{
			Total: 2, Succeeded: units[:1], Failures: []executor.UnitFailure{{Unit: units[1]}},
		}}, want: ExitSuccess},
		{name: "all failed", result: &workflow.Result{Execution: &executor.RunSummary{
			Total: 2, Failures: []executor.UnitFailure{{Unit: units[0]}, {Unit: units[1]}},
		}}, want: ExitRuntimeError},
		{name: "interrupted", result: &workflow.Result{Interrupted: true}, want: ExitInterrupted},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, exitCode(tt.result))
		})
	}
}
