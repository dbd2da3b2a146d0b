package workflow

import (
	"context"

	"github.com/pkg/errors"

	"github.com/karthikiyer56/block-proving-profiler/block-profiling-workflow/pkg/benchmark"
	"github.com/karthikiyer56/block-proving-profiler/block-profiling-workflow/pkg/report"
	"github.com/karthikiyer56/block-proving-profiler/block-profiling-workflow/pkg/types"
)

// =============================================================================
// Benchmark Mode
// =============================================================================
//
// Each worker runs the prover, extracts the scalar metrics from stdout,
// looks the block up on the RPC node and hands the finished row to an
// OrderedAppender. Rows reach the file in input order, each one as soon as
// every earlier unit has finished, so an interrupted sweep keeps a gap-free
// prefix of results.

// runBenchmark runs benchmark mode.
func (w *Workflow) runBenchmark(ctx context.Context, units []types.ExecutionUnit, result *Result) error {
	log := w.parent.WithScope("BENCHMARK")

	out, err := report.Create(w.opts.ReportPath, types.BenchmarkReportHeader)
	if err != nil {
		return err
	}
	defer out.Close()

	if len(units) == 0 {
		w.logEmptyBatch()
	} else {
		appender := report.NewOrderedAppender(out)

		task := func(ctx context.Context, unit types.ExecutionUnit) (err error) {
			defer func() {
				if err != nil {
					if skipErr := appender.Skip(unit.Ordinal); skipErr != nil {
						log.Error("failed to write report row: %v", skipErr)
					}
				}
			}()

			output, err := w.runner.Run(ctx, Invocation(w.opts, unit, ""))
			if err != nil {
				return err
			}

			row := benchmark.ParseRow(output.Stdout, w.lookupBlock(ctx, unit))
			if err := appender.Add(unit.Ordinal, row.Record()); err != nil {
				return errors.Wrap(err, "write report row")
			}
			return nil
		}

		result.Execution = w.orchestrator().Run(ctx, units, task)

		if err := appender.Drain(); err != nil {
			return errors.Wrap(err, "write benchmark report")
		}
	}

	result.Rows = out.Rows()
	if err := out.Close(); err != nil {
		return errors.Wrap(err, "close benchmark report")
	}
	log.Info("Wrote %d rows to %s", result.Rows, out.Path())
	return nil
}

// lookupBlock fetches block metadata; nil means unavailable.
func (w *Workflow) lookupBlock(ctx context.Context, unit types.ExecutionUnit) *types.BlockInfo {
	if w.meta == nil {
		return nil
	}
	info, err := w.meta.BlockByHash(ctx, unit.BlockID)
	if err != nil {
		w.log.Error("Block %s: %v", unit.BlockID, err)
		return nil
	}
	return &info
}
