package executor

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/karthikiyer56/block-proving-profiler/block-profiling-workflow/pkg/logging"
	"github.com/karthikiyer56/block-proving-profiler/block-profiling-workflow/pkg/metrics"
	"github.com/karthikiyer56/block-proving-profiler/block-profiling-workflow/pkg/types"
)

func makeUnits(n int) []types.ExecutionUnit {
	units := make([]types.ExecutionUnit, n)
	for i := range units {
		units[i] = types.ExecutionUnit{Ordinal: i, BlockID: fmt.Sprintf("0x%02d", i+1)}
	}
	return units
}

func newTestOrchestrator(jobs int, timeout time.Duration, m *metrics.Metrics) *Orchestrator {
	return NewOrchestrator(Config{
		Jobs:    jobs,
		Timeout: timeout,
		Mode:    types.ModeTrace,
		Logger:  logging.NewConsoleLogger(io.Discard),
		Metrics: m,
	})
}

func TestOrchestrator_IsolatesFailures(t *testing.T) {
	m := metrics.New()
	o := newTestOrchestrator(2, 0, m)

	summary := o.Run(context.Background(), makeUnits(5), func(ctx context.Context, unit types.ExecutionUnit) error {
		if unit.BlockID == "0x03" {
			return &types.UnitError{ExitCode: 1, Stderr: "boom", Err: errors.New("exit status 1")}
		}
		return nil
	})

	assert.Equal(t, 5, summary.Total)
	require.Equal(t, 1, summary.Failed())
	assert.Equal(t, "0x03", summary.Failures[0].Unit.BlockID)
	assert.True(t, errors.Is(summary.Failures[0].Err, types.ErrInvocationFailure))

	var unitErr *types.UnitError
	require.True(t, errors.As(summary.Failures[0].Err, &unitErr))
	assert.Equal(t, "0x03", unitErr.BlockID)

	var ids []string
	for _, u := range summary.Succeeded {
		ids = append(ids, u.BlockID)
	}
	assert.Equal(t, []string{"0x01", "0x02", "0x04", "0x05"}, ids)
	assert.Equal(t, 5, summary.Latency.Count)

	assert.Equal(t, 4.0, testutil.ToFloat64(m.UnitsTotal.WithLabelValues("trace", metrics.StatusSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.UnitsTotal.WithLabelValues("trace", metrics.StatusFailed)))
}

func TestOrchestrator_RespectsJobLimit(t *testing.T) {
	o := newTestOrchestrator(3, 0, nil)

	var inFlight, peak atomic.Int32
	summary := o.Run(context.Background(), makeUnits(12), func(ctx context.Context, unit types.ExecutionUnit) error {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		inFlight.Add(-1)
		return nil
	})

	assert.Equal(t, 0, summary.Failed())
	assert.LessOrEqual(t, peak.Load(), int32(3))
	assert.Greater(t, peak.Load(), int32(1))
}

func TestOrchestrator_DefaultJobs(t *testing.T) {
	o := newTestOrchestrator(0, 0, nil)
	assert.Equal(t, types.DefaultJobs, o.jobs)
	assert.Equal(t, "jobs=4 timeout=none", o.String())
}

func TestOrchestrator_PanicIsAFailure(t *testing.T) {
	o := newTestOrchestrator(2, 0, nil)

	summary := o.Run(context.Background(), makeUnits(3), func(ctx context.Context, unit types.ExecutionUnit) error {
		if unit.Ordinal == 1 {
			panic("decoder exploded")
		}
		return nil
	})

	require.Equal(t, 1, summary.Failed())
	assert.Contains(t, summary.Failures[0].Err.Error(), "decoder exploded")
	assert.Len(t, summary.Succeeded, 2)
}

func TestOrchestrator_TimeoutIsAFailure(t *testing.T) {
	o := newTestOrchestrator(2, 50*time.Millisecond, nil)

	summary := o.Run(context.Background(), makeUnits(2), func(ctx context.Context, unit types.ExecutionUnit) error {
		if unit.Ordinal == 0 {
			<-ctx.Done()
			return ctx.Err()
		}
		return nil
	})

	require.Equal(t, 1, summary.Failed())
	assert.Contains(t, summary.Failures[0].Err.Error(), "timed out after")
	assert.True(t, errors.Is(summary.Failures[0].Err, context.DeadlineExceeded))
}

func TestOrchestrator_CancelledRunSkipsRemainingUnits(t *testing.T) {
	o := newTestOrchestrator(1, 0, nil)
	ctx, cancel := context.WithCancel(context.Background())

	var ran atomic.Int32
	summary := o.Run(ctx, makeUnits(4), func(ctx context.Context, unit types.ExecutionUnit) error {
		ran.Add(1)
		cancel()
		return nil
	})

	assert.Equal(t, int32(1), ran.Load())
	assert.Len(t, summary.Succeeded, 1)
	assert.Equal(t, 3, summary.Failed())
	for _, f := range summary.Failures {
		assert.True(t, errors.Is(f.Err, context.Canceled))
	}
}

func TestOrchestrator_EmptyBatch(t *testing.T) {
	o := newTestOrchestrator(4, 0, nil)
	summary := o.Run(context.Background(), nil, func(context.Context, types.ExecutionUnit) error {
		t.Fatal("task must not run")
		return nil
	})
	assert.Equal(t, 0, summary.Total)
	assert.Equal(t, 0, summary.Failed())
}

func TestRunSummary_LogSummaryListsFailures(t *testing.T) {
	summary := &RunSummary{
		Total:     2,
		Succeeded: makeUnits(1),
		Failures: []UnitFailure{{
			Unit: types.ExecutionUnit{Ordinal: 1, BlockID: "0xbad"},
			Err:  errors.New("exit status 2"),
		}},
	}

	var out bytes.Buffer
	summary.LogSummary(logging.NewConsoleLogger(&out))
	assert.Contains(t, out.String(), "Failed:      1")
	assert.Contains(t, out.String(), "block 0xbad: exit status 2")
}
