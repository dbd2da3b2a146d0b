// =============================================================================
// pkg/workflow/workflow.go - Run Orchestration
// =============================================================================
//
// A Workflow performs one profiling run over a list of ExecutionUnits:
//
//	BENCHMARK:
//	  prover per unit (no tracing) → parse stdout → block metadata lookup
//	  → row appended to the report in input order as soon as it is ready
//
//	TRACE:
//	  prover per unit (cycle tracker on) → artifact in the scratch directory
//	  → collector goroutine decodes + merges it, then deletes it
//	  → after the last unit: per-counter statistics → report sorted by name
//
// USAGE:
//
//	wf := workflow.New(opts, workflow.Deps{Runner: runner, Metadata: client, Logger: logger})
//	result, err := wf.Run(ctx, units)
//
// ERRORS:
//
//	Run returns an error only for setup failures (types.ErrSetup) or when the
//	report itself cannot be written. Per-unit failures are in the Result.
//	An interrupted run (ctx cancelled) still writes the report from what
//	completed and sets Result.Interrupted.
//
// The Workflow logs with a [WORKFLOW] scope; each mode adds its own
// ([BENCHMARK] or [TRACE]).
//
// =============================================================================

package workflow

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/karthikiyer56/block-proving-profiler/block-profiling-workflow/pkg/executor"
	"github.com/karthikiyer56/block-proving-profiler/block-profiling-workflow/pkg/interfaces"
	"github.com/karthikiyer56/block-proving-profiler/block-profiling-workflow/pkg/memory"
	"github.com/karthikiyer56/block-proving-profiler/block-profiling-workflow/pkg/metrics"
	"github.com/karthikiyer56/block-proving-profiler/block-profiling-workflow/pkg/types"
	"github.com/karthikiyer56/block-proving-profiler/helpers"
)

// Options is the resolved configuration of one run.
type Options struct {
	Mode types.Mode

	// Prover invocation
	CLIBin   string
	RPCURL   string
	Action   string
	DevMode  bool
	ExtraEnv map[string]string

	// Execution
	Jobs    int
	Timeout time.Duration

	// ReportPath is the CSV file to write.
	ReportPath string

	// ScratchParent is where the per-run scratch directory is created;
	// empty means the system temp directory. Trace mode only.
	ScratchParent string

	// MemoryWarningGB is the RSS threshold for the memory warning.
	MemoryWarningGB float64

	// RunID labels log lines and the scratch directory; generated if empty.
	RunID string
}

// Deps are the external collaborators of a Workflow.
type Deps struct {
	Runner interfaces.Runner

	// Metadata may be nil, in which case block number and gas used are N/A.
	Metadata interfaces.MetadataSource

	Logger  interfaces.Logger
	Metrics *metrics.Metrics
}

// Result describes a finished run.
type Result struct {
	RunID      string
	Mode       types.Mode
	ReportPath string

	// Execution is the orchestrator's outcome; nil for an empty batch.
	Execution *executor.RunSummary

	// Rows is the number of data rows in the report.
	Rows int

	// CorruptArtifacts counts trace artifacts that could not be decoded.
	CorruptArtifacts int

	// Counters and Observations describe the accumulated series (trace mode).
	Counters     int
	Observations int64

	// Interrupted is set when the run context was cancelled.
	Interrupted bool

	StartTime time.Time
	Duration  time.Duration
}

// Failed returns the number of failed units.
func (r *Result) Failed() int {
	if r.Execution == nil {
		return 0
	}
	return r.Execution.Failed()
}

// Workflow runs one profiling pass.
type Workflow struct {
	opts    Options
	runner  interfaces.Runner
	meta    interfaces.MetadataSource
	log     interfaces.Logger
	parent  interfaces.Logger
	metrics *metrics.Metrics
	memory  *memory.MemoryMonitor
}

// New creates a Workflow.
func New(opts Options, deps Deps) *Workflow {
	if opts.RunID == "" {
		opts.RunID = uuid.NewString()
	}
	if opts.Jobs <= 0 {
		opts.Jobs = types.DefaultJobs
	}
	if opts.MemoryWarningGB <= 0 {
		opts.MemoryWarningGB = types.RAMWarningThresholdGB
	}
	return &Workflow{
		opts:    opts,
		runner:  deps.Runner,
		meta:    deps.Metadata,
		log:     deps.Logger.WithScope("WORKFLOW"),
		parent:  deps.Logger,
		metrics: deps.Metrics,
		memory:  memory.NewMemoryMonitor(deps.Logger, opts.MemoryWarningGB),
	}
}

// RunID returns the identifier of this run.
func (w *Workflow) RunID() string {
	return w.opts.RunID
}

// Run executes the workflow over units.
func (w *Workflow) Run(ctx context.Context, units []types.ExecutionUnit) (*Result, error) {
	result := &Result{
		RunID:      w.opts.RunID,
		Mode:       w.opts.Mode,
		ReportPath: w.opts.ReportPath,
		StartTime:  time.Now(),
	}

	w.log.Separator()
	w.log.Info("                    BLOCK PROFILING: %s", w.opts.Mode)
	w.log.Separator()
	w.log.Info("")
	w.log.Info("Run ID:     %s", w.opts.RunID)
	w.log.Info("Start Time: %s", result.StartTime.Format("2006-01-02 15:04:05"))
	w.log.Info("Units:      %d", len(units))
	w.log.Info("Report:     %s", w.opts.ReportPath)
	w.log.Info("")

	snapshot := memory.TakeMemorySnapshot()
	snapshot.Log(w.log, "Initial")
	w.log.Info("")

	var err error
	switch w.opts.Mode {
	case types.ModeTrace:
		err = w.runTrace(ctx, units, result)
	default:
		err = w.runBenchmark(ctx, units, result)
	}
	if err != nil {
		return nil, err
	}

	result.Interrupted = ctx.Err() != nil
	result.Duration = time.Since(result.StartTime)
	w.logFinalSummary(result)
	return result, nil
}

// orchestrator builds the executor for this run.
func (w *Workflow) orchestrator() *executor.Orchestrator {
	return executor.NewOrchestrator(executor.Config{
		Jobs:    w.opts.Jobs,
		Timeout: w.opts.Timeout,
		Mode:    w.opts.Mode,
		Logger:  w.parent,
		Metrics: w.metrics,
	})
}

// logEmptyBatch reports that there is nothing to run.
func (w *Workflow) logEmptyBatch() {
	w.log.Error("%v: no input units found; writing header-only report", types.ErrEmptyBatch)
}

// logFinalSummary logs the end-of-run summary.
func (w *Workflow) logFinalSummary(r *Result) {
	w.log.Separator()
	if r.Interrupted {
		w.log.Info("                    RUN INTERRUPTED")
	} else {
		w.log.Info("                    RUN COMPLETE")
	}
	w.log.Separator()
	w.log.Info("")

	if r.Execution != nil {
		r.Execution.LogSummary(w.log)
	}

	w.log.Info("REPORT:")
	w.log.Info("  Path:              %s", r.ReportPath)
	w.log.Info("  Rows:              %s", helpers.FormatNumber(int64(r.Rows)))
	if r.Mode == types.ModeTrace {
		w.log.Info("  Counters:          %s", helpers.FormatNumber(int64(r.Counters)))
		w.log.Info("  Observations:      %s", helpers.FormatNumber(r.Observations))
		if r.CorruptArtifacts > 0 {
			w.log.Error("  Corrupt Artifacts: %d", r.CorruptArtifacts)
		}
	}
	w.log.Info("  Total Duration:    %s", helpers.FormatDuration(r.Duration))
	w.log.Info("")

	w.memory.LogSummary(w.log)
	w.metrics.LogSummary(w.log)
	w.log.Sync()
}
