// =============================================================================
// main.go - Entry Point for block-profiler
// =============================================================================
//
// This is the entry point for the block-profiler tool. It handles:
//   - Subcommand and flag parsing (benchmark, trace)
//   - Configuration layering (defaults → TOML → environment → flags)
//   - Signal handling (SIGINT/SIGTERM cancel the run)
//   - Build step, prover check and input discovery
//   - Workflow execution and exit code mapping
//
// USAGE:
//
//	block-profiler benchmark [--jobs 4] [--eth-rpc-url URL] [--report block-benchmarks.csv]
//	block-profiler trace     [--jobs 4] [--scratch-dir /mnt/scratch] [--report traces.csv]
//
//	Common flags:
//	  --config PATH        TOML configuration file
//	  --cli-bin PATH       Prover binary (default ./target/release/cli)
//	  --input-dir PATH     Directory of input_0x*.json files (default cache)
//	  --timeout DURATION   Per-invocation timeout (default none)
//	  --skip-build         Do not run the build command
//	  --metrics-addr ADDR  Serve Prometheus metrics on ADDR
//	  --log-file PATH      Copy of all log output
//	  --error-file PATH    Copy of error log output
//	  --dry-run            Validate, list the discovered units and exit
//
// SIGNAL HANDLING:
//
//	SIGINT / SIGTERM:
//	  - In-flight prover processes are terminated and recorded as failed
//	  - Units not yet started are skipped
//	  - The report is still written from everything that completed
//
// EXIT CODES:
//
//	0   - Success (individual units may have failed; see the run summary)
//	1   - Configuration or setup error (nothing was run)
//	2   - Runtime error (report not written, or every unit failed)
//	130 - Interrupted by SIGINT/SIGTERM
//
// =============================================================================

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/karthikiyer56/block-proving-profiler/block-profiling-workflow/pkg/executor"
	"github.com/karthikiyer56/block-proving-profiler/block-profiling-workflow/pkg/inputs"
	"github.com/karthikiyer56/block-proving-profiler/block-profiling-workflow/pkg/interfaces"
	"github.com/karthikiyer56/block-proving-profiler/block-profiling-workflow/pkg/logging"
	"github.com/karthikiyer56/block-proving-profiler/block-profiling-workflow/pkg/metrics"
	"github.com/karthikiyer56/block-proving-profiler/block-profiling-workflow/pkg/types"
	"github.com/karthikiyer56/block-proving-profiler/block-profiling-workflow/pkg/workflow"
)

// =============================================================================
// Version Information
// =============================================================================

const (
	// Version is the tool version
	Version = "1.0.0"

	// ToolName is the name of this tool
	ToolName = "block-profiler"
)

// =============================================================================
// Exit Codes
// =============================================================================

const (
	ExitSuccess      = 0
	ExitConfigError  = 1
	ExitRuntimeError = 2
	ExitInterrupted  = 130 // 128 + SIGINT(2)
)

// =============================================================================
// Main Entry Point
// =============================================================================

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := execute(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// execute parses args and runs the selected subcommand, returning the exit code.
func execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	code := ExitSuccess
	root := newRootCommand(ctx, &code, stdout, stderr)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return ExitConfigError
	}
	return code
}

// =============================================================================
// Commands and Flags
// =============================================================================

// flagValues receives the command-line flags. Only flags the user actually
// set override the config file; see applyFlags.
type flagValues struct {
	configFile  string
	rpcURL      string
	cliBin      string
	inputDir    string
	scratchDir  string
	report      string
	logFile     string
	errorFile   string
	metricsAddr string
	jobs        int
	timeout     time.Duration
	skipBuild   bool
	noMetadata  bool
	dryRun      bool
}

func newRootCommand(ctx context.Context, code *int, stdout, stderr io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:           ToolName,
		Short:         "Run a zkVM prover over cached blocks and report cycle costs",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		newModeCommand(ctx, types.ModeBenchmark, "Measure per-block execution time and cycle counts", code, stdout, stderr),
		newModeCommand(ctx, types.ModeTrace, "Aggregate per-counter cycle telemetry across blocks", code, stdout, stderr),
	)
	return root
}

func newModeCommand(ctx context.Context, mode types.Mode, short string, code *int, stdout, stderr io.Writer) *cobra.Command {
	fv := &flagValues{}
	cmd := &cobra.Command{
		Use:   mode.String(),
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			config, err := resolveConfig(mode, fv, cmd.Flags(), os.Getenv)
			if err != nil {
				fmt.Fprintf(stderr, "Configuration error: %v\n", err)
				*code = ExitConfigError
				return nil
			}
			*code = run(ctx, config, stdout, stderr)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&fv.configFile, "config", "", "TOML configuration file")
	f.StringVar(&fv.rpcURL, "eth-rpc-url", types.DefaultRPCURL, "Ethereum JSON-RPC endpoint (env "+types.EnvEthRPCURL+")")
	f.StringVar(&fv.cliBin, "cli-bin", types.DefaultCLIBin, "Prover binary")
	f.StringVar(&fv.inputDir, "input-dir", types.DefaultInputs, "Directory of input_0x*.json files")
	f.StringVar(&fv.report, "report", DefaultReport(mode), "CSV report path")
	f.StringVar(&fv.logFile, "log-file", "", "Log file (all output)")
	f.StringVar(&fv.errorFile, "error-file", "", "Error log file")
	f.StringVar(&fv.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address")
	f.IntVarP(&fv.jobs, "jobs", "j", types.DefaultJobs, "Concurrent prover invocations")
	f.DurationVar(&fv.timeout, "timeout", 0, "Per-invocation timeout (0 disables)")
	f.BoolVar(&fv.skipBuild, "skip-build", false, "Do not run the build command")
	f.BoolVar(&fv.dryRun, "dry-run", false, "Validate configuration, list units and exit")
	switch mode {
	case types.ModeTrace:
		f.StringVar(&fv.scratchDir, "scratch-dir", "", "Parent directory for trace artifacts (default system temp)")
	default:
		f.BoolVar(&fv.noMetadata, "no-metadata", false, "Skip block number and gas used lookups")
	}
	return cmd
}

// resolveConfig layers defaults, the config file, the environment and the
// explicitly set flags.
func resolveConfig(mode types.Mode, fv *flagValues, flags *pflag.FlagSet, getenv func(string) string) (*Config, error) {
	config, err := LoadConfig(fv.configFile, mode)
	if err != nil {
		return nil, err
	}
	config.ApplyEnv(getenv)
	applyFlags(config, fv, flags)
	return config, nil
}

// applyFlags copies every flag that was set on the command line into config.
func applyFlags(config *Config, fv *flagValues, flags *pflag.FlagSet) {
	set := func(name string) bool {
		f := flags.Lookup(name)
		return f != nil && f.Changed
	}

	if set("eth-rpc-url") {
		config.Prover.RPCURL = fv.rpcURL
	}
	if set("cli-bin") {
		config.Prover.CLIBin = fv.cliBin
	}
	if set("input-dir") {
		config.Run.InputDir = fv.inputDir
	}
	if set("scratch-dir") {
		config.Run.ScratchDir = fv.scratchDir
	}
	if set("report") {
		config.Output.Report = fv.report
	}
	if set("log-file") {
		config.Output.LogFile = fv.logFile
	}
	if set("error-file") {
		config.Output.ErrorFile = fv.errorFile
	}
	if set("metrics-addr") {
		config.Metrics.Addr = fv.metricsAddr
	}
	if set("jobs") {
		config.Run.Jobs = fv.jobs
	}
	if set("timeout") {
		config.Run.Timeout = Duration(fv.timeout)
	}
	if set("skip-build") {
		config.Run.SkipBuild = fv.skipBuild
	}
	if set("no-metadata") && fv.noMetadata {
		config.Metadata.Enabled = false
	}
	config.DryRun = fv.dryRun
}

// =============================================================================
// Run
// =============================================================================

// run executes one resolved configuration and returns the exit code.
func run(ctx context.Context, config *Config, stdout, stderr io.Writer) int {
	if err := config.Validate(); err != nil {
		fmt.Fprintf(stderr, "Configuration error: %v\n", err)
		return ExitConfigError
	}

	logger, err := logging.NewDualLogger(stdout, config.Output.LogFile, config.Output.ErrorFile)
	if err != nil {
		fmt.Fprintf(stderr, "Failed to create logger: %v\n", err)
		return ExitConfigError
	}
	defer logger.Close()

	logStartup(logger, config)

	units, err := inputs.DiscoverUnits(config.Run.InputDir)
	if err != nil {
		logger.Error("Input discovery failed: %v", err)
		return ExitConfigError
	}

	if config.DryRun {
		logDryRun(logger, config, units)
		fmt.Fprintln(stdout, "Dry run complete. Configuration is valid.")
		return ExitSuccess
	}

	runner := executor.NewProcessRunner("")
	if err := workflow.Build(ctx, runner, config.BuildCommand(), logger); err != nil {
		if ctx.Err() != nil {
			logger.Error("Interrupted during build")
			return ExitInterrupted
		}
		logger.Error("%v", err)
		return ExitConfigError
	}
	if err := workflow.CheckProver(config.Prover.CLIBin); err != nil {
		logger.Error("%v", err)
		return ExitConfigError
	}

	m := metrics.New()
	if config.Metrics.Addr != "" {
		if err := m.Serve(ctx, config.Metrics.Addr, logger); err != nil {
			logger.Error("Failed to start metrics server: %v", err)
			return ExitConfigError
		}
	}

	wf := workflow.New(config.WorkflowOptions(), workflow.Deps{
		Runner:   runner,
		Metadata: config.MetadataSource(m),
		Logger:   logger,
		Metrics:  m,
	})

	result, err := wf.Run(ctx, units)
	if err != nil {
		logger.Error("Workflow failed: %v", err)
		fmt.Fprintf(stderr, "Workflow failed: %v\n", err)
		if errors.Is(err, types.ErrSetup) {
			return ExitConfigError
		}
		return ExitRuntimeError
	}
	return exitCode(result)
}

// exitCode maps a finished run to the process exit code.
func exitCode(result *workflow.Result) int {
	if result.Interrupted {
		return ExitInterrupted
	}
	if result.Execution != nil && result.Execution.Total > 0 && len(result.Execution.Succeeded) == 0 {
		return ExitRuntimeError
	}
	return ExitSuccess
}

// =============================================================================
// Startup Logging
// =============================================================================

// logStartup logs startup information.
func logStartup(logger interfaces.Logger, config *Config) {
	logger.Separator()
	logger.Info("                    %s v%s", ToolName, Version)
	logger.Separator()
	logger.Info("")
	logger.Info("Process ID:  %d", os.Getpid())
	logger.Info("Working Dir: %s", mustGetwd())
	logger.Info("")
	logger.Info("SIGNAL HANDLING:")
	logger.Info("  SIGINT  → Cancel run, write report from completed units")
	logger.Info("  SIGTERM → Cancel run, write report from completed units")
	logger.Info("")
	config.PrintConfig(logger)
	logger.Sync()
}

// logDryRun lists the units a real run would execute.
func logDryRun(logger interfaces.Logger, config *Config, units []types.ExecutionUnit) {
	logger.Separator()
	logger.Info("                         DISCOVERED UNITS")
	logger.Separator()
	logger.Info("")
	if len(units) == 0 {
		logger.Error("%v: no input files in %s", types.ErrEmptyBatch, config.Run.InputDir)
	}
	for _, unit := range units {
		logger.Info("  %4d  %s", unit.Ordinal+1, unit.BlockID)
	}
	logger.Info("")
	logger.Separator()
	logger.Info("                         DRY RUN COMPLETE")
	logger.Separator()
	logger.Info("")
	logger.Info("Configuration validated successfully.")
	logger.Info("No prover executed (--dry-run mode).")
	logger.Info("")
	logger.Sync()
}

// mustGetwd returns the current working directory or "unknown".
func mustGetwd() string {
	wd, err := os.Getwd()
	if err != nil {
		return "unknown"
	}
	return wd
}
