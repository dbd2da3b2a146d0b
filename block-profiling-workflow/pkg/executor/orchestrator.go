// =============================================================================
// pkg/executor/orchestrator.go - Bounded Parallel Unit Execution
// =============================================================================
//
// The Orchestrator runs one task per ExecutionUnit with at most Jobs tasks in
// flight.
//
// ARCHITECTURE:
//
//	┌──────────┐   ┌──────────────────────────┐
//	│ units[]  │──▶│ errgroup (limit = Jobs)  │──▶ task(ctx, unit) per goroutine
//	└──────────┘   └──────────────────────────┘          │
//	                                                      ▼
//	                                     RunSummary (successes, failures, timing)
//
// FAILURE ISOLATION:
//
//	A task error, timeout or panic marks only that unit as failed. Tasks are
//	wrapped so the group never sees an error, which keeps the group context
//	from cancelling siblings. Failed units are not retried.
//
// CANCELLATION:
//
//	When the parent context is cancelled, in-flight tasks see it through
//	their context and units not yet started are recorded as failed without
//	running.
//
// =============================================================================

package executor

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/karthikiyer56/block-proving-profiler/block-profiling-workflow/pkg/interfaces"
	"github.com/karthikiyer56/block-proving-profiler/block-profiling-workflow/pkg/metrics"
	"github.com/karthikiyer56/block-proving-profiler/block-profiling-workflow/pkg/stats"
	"github.com/karthikiyer56/block-proving-profiler/block-profiling-workflow/pkg/types"
	"github.com/karthikiyer56/block-proving-profiler/helpers"
)

// stderrTailLines is how much of a failed prover's stderr is logged.
const stderrTailLines = 20

// Task does the work of one unit. A nil error marks the unit as succeeded.
type Task func(ctx context.Context, unit types.ExecutionUnit) error

// Config configures an Orchestrator.
type Config struct {
	// Jobs is the maximum number of tasks in flight (default 4).
	Jobs int

	// Timeout bounds each task; zero disables it.
	Timeout time.Duration

	// Mode labels metrics and log lines.
	Mode types.Mode

	Logger  interfaces.Logger
	Metrics *metrics.Metrics
}

// Orchestrator runs tasks over units with bounded concurrency.
type Orchestrator struct {
	jobs    int
	timeout time.Duration
	mode    types.Mode
	logger  interfaces.Logger
	metrics *metrics.Metrics
}

// NewOrchestrator creates an Orchestrator.
func NewOrchestrator(cfg Config) *Orchestrator {
	jobs := cfg.Jobs
	if jobs <= 0 {
		jobs = types.DefaultJobs
	}
	return &Orchestrator{
		jobs:    jobs,
		timeout: cfg.Timeout,
		mode:    cfg.Mode,
		logger:  cfg.Logger.WithScope("EXEC"),
		metrics: cfg.Metrics,
	}
}

// UnitFailure records why a unit failed.
type UnitFailure struct {
	Unit types.ExecutionUnit
	Err  error
}

// RunSummary is the outcome of one Run.
type RunSummary struct {
	Total     int
	Succeeded []types.ExecutionUnit
	Failures  []UnitFailure
	Latency   types.LatencySummary
	Elapsed   time.Duration
}

// Failed returns the number of failed units.
func (s *RunSummary) Failed() int {
	return len(s.Failures)
}

// LogSummary logs counts, timing and every failure.
func (s *RunSummary) LogSummary(logger interfaces.Logger) {
	logger.Info("EXECUTION SUMMARY:")
	logger.Info("  Units:       %d", s.Total)
	logger.Info("  Succeeded:   %d", len(s.Succeeded))
	logger.Info("  Failed:      %d", len(s.Failures))
	logger.Info("  Elapsed:     %s", helpers.FormatDuration(s.Elapsed))
	logger.Info("  Throughput:  %s", helpers.FormatRate(int64(s.Total), s.Elapsed))
	logger.Info("  Invocations: %s", stats.FormatLatency(s.Latency))
	for _, f := range s.Failures {
		logger.Error("  block %s: %v", f.Unit.BlockID, f.Err)
	}
	logger.Info("")
}

// Run executes task for every unit and waits for all of them.
// Both slices of the summary are ordered by unit ordinal.
func (o *Orchestrator) Run(ctx context.Context, units []types.ExecutionUnit, task Task) *RunSummary {
	start := time.Now()
	latency := stats.NewLatencyStats()
	progress := stats.NewProgressTracker(len(units))

	var (
		mu      sync.Mutex
		summary = &RunSummary{Total: len(units)}
	)
	record := func(unit types.ExecutionUnit, err error) {
		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			summary.Failures = append(summary.Failures, UnitFailure{Unit: unit, Err: err})
		} else {
			summary.Succeeded = append(summary.Succeeded, unit)
		}
	}

	o.logger.Info("Running %d units (%s mode) with %d jobs", len(units), o.mode, o.jobs)

	var g errgroup.Group
	g.SetLimit(o.jobs)

	for _, unit := range units {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				record(unit, errors.Wrap(err, "not started"))
				progress.Done(true)
				return nil
			}

			unitStart := time.Now()
			err := o.runOne(ctx, unit, task)
			elapsed := time.Since(unitStart)

			latency.Add(elapsed)
			o.metrics.UnitFinished(o.mode.String(), err != nil, elapsed)
			record(unit, err)
			progress.Done(err != nil)

			if err != nil {
				o.logFailure(unit, err)
			} else {
				o.logger.Info("Block %s done in %s", unit.BlockID, helpers.FormatDuration(elapsed))
			}
			progress.LogProgress(o.logger, "Progress")
			return nil
		})
	}
	g.Wait()

	sort.Slice(summary.Succeeded, func(i, j int) bool {
		return summary.Succeeded[i].Ordinal < summary.Succeeded[j].Ordinal
	})
	sort.Slice(summary.Failures, func(i, j int) bool {
		return summary.Failures[i].Unit.Ordinal < summary.Failures[j].Unit.Ordinal
	})
	summary.Latency = latency.Summary()
	summary.Elapsed = time.Since(start)
	return summary
}

// runOne applies the per-unit timeout and converts a panic into an error.
func (o *Orchestrator) runOne(ctx context.Context, unit types.ExecutionUnit, task Task) (err error) {
	unitCtx := ctx
	if o.timeout > 0 {
		var cancel context.CancelFunc
		unitCtx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("panic: %v", r)
		}
	}()

	err = task(unitCtx, unit)
	if err == nil {
		return nil
	}

	var unitErr *types.UnitError
	if errors.As(err, &unitErr) && unitErr.BlockID == "" {
		unitErr.BlockID = unit.BlockID
	}
	if o.timeout > 0 && ctx.Err() == nil && errors.Is(unitCtx.Err(), context.DeadlineExceeded) {
		err = errors.Wrapf(err, "timed out after %s", helpers.FormatDuration(o.timeout))
	}
	return err
}

func (o *Orchestrator) logFailure(unit types.ExecutionUnit, err error) {
	o.logger.Error("Block %s failed: %v", unit.BlockID, err)

	var unitErr *types.UnitError
	if !errors.As(err, &unitErr) {
		return
	}
	for _, line := range TailLines(unitErr.Stderr, stderrTailLines) {
		o.logger.Error("  %s", line)
	}
}

// String describes the configuration for log headers.
func (o *Orchestrator) String() string {
	timeout := "none"
	if o.timeout > 0 {
		timeout = helpers.FormatDuration(o.timeout)
	}
	return fmt.Sprintf("jobs=%d timeout=%s", o.jobs, timeout)
}
