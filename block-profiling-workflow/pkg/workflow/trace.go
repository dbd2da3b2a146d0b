package workflow

import (
	"context"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/karthikiyer56/block-proving-profiler/block-profiling-workflow/pkg/interfaces"
	"github.com/karthikiyer56/block-proving-profiler/block-profiling-workflow/pkg/report"
	"github.com/karthikiyer56/block-proving-profiler/block-profiling-workflow/pkg/series"
	"github.com/karthikiyer56/block-proving-profiler/block-profiling-workflow/pkg/stats"
	"github.com/karthikiyer56/block-proving-profiler/block-profiling-workflow/pkg/telemetry"
	"github.com/karthikiyer56/block-proving-profiler/block-profiling-workflow/pkg/types"
	"github.com/karthikiyer56/block-proving-profiler/helpers"
)

// =============================================================================
// Trace Mode
// =============================================================================
//
// PIPELINE:
//
//	┌───────────────────┐  artifact path   ┌─────────────────────────────┐
//	│ orchestrator      │ ───────────────▶ │ collector (one goroutine)   │
//	│ (Jobs provers)    │    buffered      │ decode → Merge → delete     │
//	└───────────────────┘                  └─────────────────────────────┘
//
// The collector is the only goroutine that touches the accumulator, and it
// holds at most one decoded artifact at a time. Artifacts are deleted as
// soon as they are merged (or found corrupt), so the scratch directory holds
// at most Jobs + channel buffer files.

// collectResult is what the collector reports when the channel closes.
type collectResult struct {
	merged  int
	corrupt int
}

// runTrace runs trace mode.
func (w *Workflow) runTrace(ctx context.Context, units []types.ExecutionUnit, result *Result) error {
	log := w.parent.WithScope("TRACE")

	scratch, err := w.createScratch()
	if err != nil {
		return err
	}
	defer func() {
		if err := os.RemoveAll(scratch); err != nil {
			log.Error("failed to remove scratch directory %s: %v", scratch, err)
			return
		}
		log.Info("Removed scratch directory %s", scratch)
	}()
	log.Info("Scratch directory: %s", scratch)

	out, err := report.Create(w.opts.ReportPath, types.TraceReportHeader)
	if err != nil {
		return err
	}
	defer out.Close()

	acc := series.NewAccumulator()

	if len(units) == 0 {
		w.logEmptyBatch()
	} else {
		artifacts := make(chan string, w.opts.Jobs)
		done := make(chan collectResult, 1)
		go func() {
			done <- w.collect(artifacts, acc, log)
		}()

		task := func(ctx context.Context, unit types.ExecutionUnit) error {
			path := filepath.Join(scratch, unit.ArtifactName())
			if _, err := w.runner.Run(ctx, Invocation(w.opts, unit, path)); err != nil {
				os.Remove(path)
				return err
			}
			if !helpers.FileExists(path) {
				return errors.Wrapf(types.ErrCorruptArtifact, "prover succeeded but wrote no artifact at %s", path)
			}
			artifacts <- path
			return nil
		}

		result.Execution = w.orchestrator().Run(ctx, units, task)
		close(artifacts)
		collected := <-done
		result.CorruptArtifacts = collected.corrupt
		log.Info("Collector merged %d artifacts, skipped %d corrupt", collected.merged, collected.corrupt)
	}

	result.Counters = acc.Len()
	result.Observations = acc.Observations()
	log.Info("Accumulated %s observations across %s counters (%s of buffers)",
		helpers.FormatNumber(result.Observations),
		helpers.FormatNumber(int64(result.Counters)),
		helpers.FormatBytes(acc.Footprint()))

	rows := stats.SummarizeAll(acc)
	for _, row := range rows {
		if err := out.Append(row.Record()); err != nil {
			return errors.Wrap(err, "write trace report")
		}
	}
	result.Rows = out.Rows()

	if err := out.Close(); err != nil {
		return errors.Wrap(err, "close trace report")
	}
	log.Info("Wrote %d rows to %s", result.Rows, out.Path())
	return nil
}

// collect decodes and merges artifacts until the channel is closed.
func (w *Workflow) collect(artifacts <-chan string, acc *series.Accumulator, log interfaces.Logger) collectResult {
	var res collectResult
	for path := range artifacts {
		artifact, err := telemetry.DecodeFile(path)
		if rmErr := os.Remove(path); rmErr != nil && !os.IsNotExist(rmErr) {
			log.Error("failed to remove artifact %s: %v", path, rmErr)
		}
		if err != nil {
			res.corrupt++
			w.metrics.ArtifactCorrupt()
			log.Error("Skipping artifact: %v", err)
			continue
		}

		n := acc.Merge(artifact)
		res.merged++
		w.metrics.ArtifactMerged(n, acc.Len())
		w.memory.Check()
		log.Info("Merged %s (%s observations, %d counters total)",
			filepath.Base(path), helpers.FormatNumber(int64(n)), acc.Len())
	}
	return res
}

// createScratch creates the per-run scratch directory and checks that it
// is writable.
func (w *Workflow) createScratch() (string, error) {
	parent := w.opts.ScratchParent
	if parent != "" {
		if err := helpers.EnsureDir(parent); err != nil {
			return "", errors.Wrapf(types.ErrSetup, "create scratch parent %s: %v", parent, err)
		}
	}

	prefix := "block-profiler-" + w.opts.RunID
	if len(w.opts.RunID) > 8 {
		prefix = "block-profiler-" + w.opts.RunID[:8]
	}
	dir, err := os.MkdirTemp(parent, prefix+"-")
	if err != nil {
		return "", errors.Wrapf(types.ErrSetup, "create scratch directory: %v", err)
	}
	if err := helpers.CheckDirWritable(dir); err != nil {
		os.RemoveAll(dir)
		return "", errors.Wrapf(types.ErrSetup, "scratch directory %s is not writable: %v", dir, err)
	}
	return dir, nil
}
