// =============================================================================
// config.go - Configuration Loading, Layering and Validation
// =============================================================================
//
// Configuration is resolved in four layers, each overriding the previous one:
//
//	1. Built-in defaults        (DefaultConfig, per mode)
//	2. TOML file                (--config, optional)
//	3. Environment              (ETH_RPC_URL)
//	4. Command-line flags       (only flags that were explicitly set)
//
// EXAMPLE FILE:
//
//	[prover]
//	cli_bin       = "./target/release/cli"
//	rpc_url       = "https://ethereum-rpc.publicnode.com"
//	action        = "prove"
//	dev_mode      = true
//	build_command = ["cargo", "build", "--release"]
//
//	[prover.env]
//	RUST_BACKTRACE = "1"
//
//	[run]
//	jobs        = 8
//	timeout     = "45m"
//	input_dir   = "cache"
//	scratch_dir = "/mnt/scratch"
//
//	[output]
//	report     = "block-benchmarks.csv"
//	log_file   = "logs/profiler.log"
//	error_file = "logs/profiler.err"
//
//	[metadata]
//	enabled             = true
//	timeout             = "10s"
//	requests_per_second = 10
//
//	[metrics]
//	addr              = ":9464"
//	memory_warning_gb = 32
//
// =============================================================================

package main

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"

	"github.com/karthikiyer56/block-proving-profiler/block-profiling-workflow/pkg/inputs"
	"github.com/karthikiyer56/block-proving-profiler/block-profiling-workflow/pkg/interfaces"
	"github.com/karthikiyer56/block-proving-profiler/block-profiling-workflow/pkg/metadata"
	"github.com/karthikiyer56/block-proving-profiler/block-profiling-workflow/pkg/metrics"
	"github.com/karthikiyer56/block-proving-profiler/block-profiling-workflow/pkg/types"
	"github.com/karthikiyer56/block-proving-profiler/block-profiling-workflow/pkg/workflow"
	"github.com/karthikiyer56/block-proving-profiler/helpers"
)

// =============================================================================
// Constants
// =============================================================================

const (
	// DefaultBenchmarkReport is the benchmark report written to the working directory.
	DefaultBenchmarkReport = "block-benchmarks.csv"

	// DefaultTraceReport is the trace report written to the working directory.
	DefaultTraceReport = "traces.csv"

	// DefaultMetadataTimeout bounds one eth_getBlockByHash request.
	DefaultMetadataTimeout = 10 * time.Second

	// DefaultRequestsPerSecond limits block metadata lookups.
	DefaultRequestsPerSecond = 10
)

// =============================================================================
// Duration
// =============================================================================

// Duration is a time.Duration written as a Go duration string ("45m", "1h30m")
// in the config file.
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// =============================================================================
// Config Sections
// =============================================================================

// ProverConfig describes how the prover is built and invoked.
type ProverConfig struct {
	// CLIBin is the prover binary.
	CLIBin string `toml:"cli_bin"`

	// RPCURL is passed to the prover and used for block metadata lookups.
	RPCURL string `toml:"rpc_url"`

	// Action is the prover subcommand run for every block.
	Action string `toml:"action"`

	// DevMode sets RISC0_DEV_MODE=true for every invocation.
	DevMode bool `toml:"dev_mode"`

	// Env holds extra environment variables for every invocation.
	Env map[string]string `toml:"env"`

	// BuildCommand is run once before any unit.
	BuildCommand []string `toml:"build_command"`
}

// RunConfig controls execution.
type RunConfig struct {
	// Jobs is the number of concurrent prover invocations.
	Jobs int `toml:"jobs"`

	// Timeout bounds each invocation; zero disables it.
	Timeout Duration `toml:"timeout"`

	// InputDir is scanned for input_0x*.json files.
	InputDir string `toml:"input_dir"`

	// ScratchDir is the parent of the per-run scratch directory (trace mode);
	// empty means the system temp directory.
	ScratchDir string `toml:"scratch_dir"`

	// SkipBuild disables the build step.
	SkipBuild bool `toml:"skip_build"`
}

// OutputConfig names the files a run writes.
type OutputConfig struct {
	Report    string `toml:"report"`
	LogFile   string `toml:"log_file"`
	ErrorFile string `toml:"error_file"`
}

// MetadataConfig controls block metadata lookups (benchmark mode).
type MetadataConfig struct {
	Enabled           bool     `toml:"enabled"`
	Timeout           Duration `toml:"timeout"`
	RequestsPerSecond float64  `toml:"requests_per_second"`
}

// MetricsConfig controls the Prometheus endpoint and the memory warning.
type MetricsConfig struct {
	// Addr is the listen address of /metrics; empty disables the endpoint.
	Addr string `toml:"addr"`

	// MemoryWarningGB is the RSS threshold for the memory warning.
	MemoryWarningGB float64 `toml:"memory_warning_gb"`
}

// =============================================================================
// Config - Main Configuration
// =============================================================================

// Config holds all configuration for one block-profiler run.
type Config struct {
	Prover   ProverConfig   `toml:"prover"`
	Run      RunConfig      `toml:"run"`
	Output   OutputConfig   `toml:"output"`
	Metadata MetadataConfig `toml:"metadata"`
	Metrics  MetricsConfig  `toml:"metrics"`

	// Mode is set from the subcommand, never from the file.
	Mode types.Mode `toml:"-"`

	// ConfigFile is the file the config was loaded from, if any.
	ConfigFile string `toml:"-"`

	// DryRun validates the configuration without running the workflow.
	DryRun bool `toml:"-"`
}

// DefaultBuildCommand returns the build command for mode.
func DefaultBuildCommand(mode types.Mode) []string {
	if mode == types.ModeTrace {
		return []string{"cargo", "build", "--release", "--features", "cycle-tracker"}
	}
	return []string{"cargo", "build", "--release"}
}

// DefaultReport returns the report file name for mode.
func DefaultReport(mode types.Mode) string {
	if mode == types.ModeTrace {
		return DefaultTraceReport
	}
	return DefaultBenchmarkReport
}

// DefaultConfig returns the built-in configuration for mode.
func DefaultConfig(mode types.Mode) *Config {
	return &Config{
		Mode: mode,
		Prover: ProverConfig{
			CLIBin:       types.DefaultCLIBin,
			RPCURL:       types.DefaultRPCURL,
			Action:       types.DefaultAction,
			DevMode:      true,
			Env:          map[string]string{},
			BuildCommand: DefaultBuildCommand(mode),
		},
		Run: RunConfig{
			Jobs:     types.DefaultJobs,
			InputDir: types.DefaultInputs,
		},
		Output: OutputConfig{
			Report: DefaultReport(mode),
		},
		Metadata: MetadataConfig{
			Enabled:           true,
			Timeout:           Duration(DefaultMetadataTimeout),
			RequestsPerSecond: DefaultRequestsPerSecond,
		},
		Metrics: MetricsConfig{
			MemoryWarningGB: types.RAMWarningThresholdGB,
		},
	}
}

// =============================================================================
// Configuration Loading
// =============================================================================

// LoadConfig returns the defaults for mode overlaid with the TOML file at
// path. An empty path returns the defaults. Keys the file sets that no field
// accepts are an error, so typos do not silently fall back to defaults.
func LoadConfig(path string, mode types.Mode) (*Config, error) {
	config := DefaultConfig(mode)
	if path == "" {
		return config, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read config file %s", path)
	}

	md, err := toml.Decode(string(data), config)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse config file %s", path)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, errors.Errorf("unknown keys in config file %s: %s", path, strings.Join(keys, ", "))
	}

	config.Mode = mode
	config.ConfigFile = path
	if config.Prover.Env == nil {
		config.Prover.Env = map[string]string{}
	}
	return config, nil
}

// ApplyEnv overlays environment variables read through getenv.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if url := getenv(types.EnvEthRPCURL); url != "" {
		c.Prover.RPCURL = url
	}
}

// =============================================================================
// Validation
// =============================================================================

// Validate checks the configuration and normalises paths.
//
// Checks:
//  1. Mode, jobs, timeouts and lookup rate are in range
//  2. Prover binary, RPC URL and action are set
//  3. Input directory exists
//  4. Report and log directories can be created (skipped on dry-run)
//
// The prover binary itself is checked after the build step, in main.
func (c *Config) Validate() error {
	if c.Mode != types.ModeBenchmark && c.Mode != types.ModeTrace {
		return errors.Errorf("unknown mode %q", c.Mode)
	}
	if c.Run.Jobs <= 0 {
		return errors.Errorf("--jobs must be positive, got %d", c.Run.Jobs)
	}
	if c.Run.Timeout < 0 {
		return errors.Errorf("--timeout must not be negative, got %s", time.Duration(c.Run.Timeout))
	}
	if c.Prover.CLIBin == "" {
		return errors.New("--cli-bin is required")
	}
	if c.Prover.RPCURL == "" {
		return errors.New("--eth-rpc-url is required")
	}
	if c.Prover.Action == "" {
		return errors.New("prover action is required")
	}
	if c.Output.Report == "" {
		return errors.New("--report is required")
	}
	if c.Metadata.Enabled && c.Metadata.RequestsPerSecond < 0 {
		return errors.Errorf("metadata requests_per_second must not be negative, got %g", c.Metadata.RequestsPerSecond)
	}
	if c.Metrics.MemoryWarningGB < 0 {
		return errors.Errorf("memory_warning_gb must not be negative, got %g", c.Metrics.MemoryWarningGB)
	}

	absInput, err := filepath.Abs(c.Run.InputDir)
	if err != nil {
		return errors.Wrap(err, "invalid --input-dir path")
	}
	c.Run.InputDir = absInput
	if err := inputs.ValidateInputDir(absInput); err != nil {
		return err
	}

	if c.DryRun {
		return nil
	}

	for _, path := range []string{c.Output.Report, c.Output.LogFile, c.Output.ErrorFile} {
		if path == "" {
			continue
		}
		dir := filepath.Dir(path)
		if err := helpers.EnsureDir(dir); err != nil {
			return errors.Wrapf(types.ErrSetup, "failed to create directory %s: %v", dir, err)
		}
	}
	return nil
}

// =============================================================================
// Derived Settings
// =============================================================================

// BuildCommand returns the build command to run, or nil when the build is skipped.
func (c *Config) BuildCommand() []string {
	if c.Run.SkipBuild {
		return nil
	}
	return c.Prover.BuildCommand
}

// WorkflowOptions converts the configuration into workflow options.
func (c *Config) WorkflowOptions() workflow.Options {
	return workflow.Options{
		Mode:            c.Mode,
		CLIBin:          c.Prover.CLIBin,
		RPCURL:          c.Prover.RPCURL,
		Action:          c.Prover.Action,
		DevMode:         c.Prover.DevMode,
		ExtraEnv:        c.Prover.Env,
		Jobs:            c.Run.Jobs,
		Timeout:         time.Duration(c.Run.Timeout),
		ReportPath:      c.Output.Report,
		ScratchParent:   c.Run.ScratchDir,
		MemoryWarningGB: c.Metrics.MemoryWarningGB,
	}
}

// MetadataSource returns the block metadata client, or nil when lookups are
// disabled or the mode does not use them.
func (c *Config) MetadataSource(m *metrics.Metrics) interfaces.MetadataSource {
	if c.Mode != types.ModeBenchmark || !c.Metadata.Enabled {
		return nil
	}
	return metadata.NewClient(metadata.Config{
		URL:               c.Prover.RPCURL,
		Timeout:           time.Duration(c.Metadata.Timeout),
		RequestsPerSecond: c.Metadata.RequestsPerSecond,
		Metrics:           m,
	})
}

// =============================================================================
// Display Functions (for dry-run and logging)
// =============================================================================

// PrintConfig prints the configuration to the logger.
func (c *Config) PrintConfig(logger interfaces.Logger) {
	orNone := func(s string) string {
		if s == "" {
			return "(none)"
		}
		return s
	}
	timeout := "none"
	if c.Run.Timeout > 0 {
		timeout = helpers.FormatDuration(time.Duration(c.Run.Timeout))
	}

	logger.Separator()
	logger.Info("                         CONFIGURATION")
	logger.Separator()
	logger.Info("")
	logger.Info("MODE:                  %s", c.Mode)
	logger.Info("Config File:           %s", orNone(c.ConfigFile))
	logger.Info("")
	logger.Info("PROVER:")
	logger.Info("  CLI Binary:          %s", c.Prover.CLIBin)
	logger.Info("  RPC URL:             %s", c.Prover.RPCURL)
	logger.Info("  Action:              %s", c.Prover.Action)
	logger.Info("  Dev Mode:            %v", c.Prover.DevMode)
	logger.Info("  Build Command:       %s", orNone(strings.Join(c.BuildCommand(), " ")))
	if len(c.Prover.Env) > 0 {
		keys := make([]string, 0, len(c.Prover.Env))
		for k := range c.Prover.Env {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			logger.Info("  Env:                 %s=%s", k, c.Prover.Env[k])
		}
	}
	logger.Info("")
	logger.Info("RUN:")
	logger.Info("  Jobs:                %d", c.Run.Jobs)
	logger.Info("  Timeout:             %s", timeout)
	logger.Info("  Input Dir:           %s", c.Run.InputDir)
	if c.Mode == types.ModeTrace {
		logger.Info("  Scratch Parent:      %s", orNone(c.Run.ScratchDir))
	}
	logger.Info("")
	logger.Info("OUTPUT:")
	logger.Info("  Report:              %s", c.Output.Report)
	logger.Info("  Log File:            %s", orNone(c.Output.LogFile))
	logger.Info("  Error File:          %s", orNone(c.Output.ErrorFile))
	logger.Info("")
	if c.Mode == types.ModeBenchmark {
		logger.Info("METADATA:")
		logger.Info("  Enabled:             %v", c.Metadata.Enabled)
		logger.Info("  Timeout:             %s", helpers.FormatDuration(time.Duration(c.Metadata.Timeout)))
		logger.Info("  Requests/sec:        %g", c.Metadata.RequestsPerSecond)
		logger.Info("")
	}
	logger.Info("METRICS:")
	logger.Info("  Listen Addr:         %s", orNone(c.Metrics.Addr))
	logger.Info("  Memory Warning:      %.0f GB", c.Metrics.MemoryWarningGB)
	logger.Info("")
}
