// =============================================================================
// pkg/stats/stats.go - Invocation Timing and Progress Tracking
// =============================================================================
//
// This package provides the run-level bookkeeping around prover invocations:
//   - Latency tracking with percentile calculations (p50, p90, p95, p99)
//   - Progress tracking with ETA calculations
//
// Per-counter statistics live in summary.go.
//
// =============================================================================

package stats

import (
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/karthikiyer56/block-proving-profiler/block-profiling-workflow/pkg/interfaces"
	"github.com/karthikiyer56/block-proving-profiler/block-profiling-workflow/pkg/types"
	"github.com/karthikiyer56/block-proving-profiler/helpers"
)

// =============================================================================
// LatencyStats - Track and Calculate Latency Percentiles
// =============================================================================

// LatencyStats collects invocation durations and computes statistics.
//
// THREAD SAFETY:
//
//	LatencyStats is safe for concurrent use from multiple goroutines.
//	All operations are protected by a mutex.
type LatencyStats struct {
	mu      sync.Mutex
	samples []time.Duration
}

// NewLatencyStats creates a new LatencyStats collector.
func NewLatencyStats() *LatencyStats {
	return &LatencyStats{
		samples: make([]time.Duration, 0, 64),
	}
}

// Add records a latency sample.
func (ls *LatencyStats) Add(d time.Duration) {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	ls.samples = append(ls.samples, d)
}

// Count returns the number of samples collected.
func (ls *LatencyStats) Count() int {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	return len(ls.samples)
}

// Summary computes statistics from collected samples.
// If no samples have been collected, returns a zero-value summary.
func (ls *LatencyStats) Summary() types.LatencySummary {
	ls.mu.Lock()
	defer ls.mu.Unlock()

	n := len(ls.samples)
	if n == 0 {
		return types.LatencySummary{}
	}

	sorted := make([]time.Duration, n)
	copy(sorted, ls.samples)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i] < sorted[j]
	})

	var sum int64
	for _, d := range ls.samples {
		sum += int64(d)
	}
	avg := sum / int64(n)

	var variance float64
	for _, d := range ls.samples {
		diff := float64(int64(d) - avg)
		variance += diff * diff
	}
	variance /= float64(n)

	return types.LatencySummary{
		Count:  n,
		Min:    sorted[0],
		Max:    sorted[n-1],
		Avg:    time.Duration(avg),
		StdDev: time.Duration(math.Sqrt(variance)),
		P50:    percentile(sorted, 0.50),
		P90:    percentile(sorted, 0.90),
		P95:    percentile(sorted, 0.95),
		P99:    percentile(sorted, 0.99),
	}
}

// percentile calculates the p-th percentile from a sorted slice
// using the nearest-rank method. p is between 0 and 1.
func percentile(sorted []time.Duration, p float64) time.Duration {
	n := len(sorted)
	if n == 0 {
		return 0
	}

	idx := int(math.Ceil(float64(n)*p)) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= n {
		idx = n - 1
	}
	return sorted[idx]
}

// FormatLatency renders a summary on one line.
func FormatLatency(s types.LatencySummary) string {
	if s.Count == 0 {
		return "count=0 (no samples)"
	}
	return fmt.Sprintf("count=%d min=%s max=%s avg=%s±%s p50=%s p90=%s p95=%s p99=%s",
		s.Count,
		helpers.FormatDuration(s.Min), helpers.FormatDuration(s.Max),
		helpers.FormatDuration(s.Avg), helpers.FormatDuration(s.StdDev),
		helpers.FormatDuration(s.P50), helpers.FormatDuration(s.P90),
		helpers.FormatDuration(s.P95), helpers.FormatDuration(s.P99))
}

// =============================================================================
// ProgressTracker - Track and Report Progress
// =============================================================================

// ProgressTracker tracks completed units and provides ETA calculations.
type ProgressTracker struct {
	mu sync.Mutex

	// Total is the total number of units to process
	Total int

	// Completed is the number of units finished (succeeded or failed)
	Completed int

	// Failed is the number of units that failed
	Failed int

	// StartTime is when tracking started
	StartTime time.Time

	now func() time.Time
}

// NewProgressTracker creates a new ProgressTracker.
func NewProgressTracker(total int) *ProgressTracker {
	return &ProgressTracker{
		Total:     total,
		StartTime: time.Now(),
		now:       time.Now,
	}
}

// Done records one finished unit.
func (pt *ProgressTracker) Done(failed bool) {
	pt.mu.Lock()
	defer pt.mu.Unlock()
	pt.Completed++
	if failed {
		pt.Failed++
	}
}

// Percentage returns the completion percentage (0-100).
func (pt *ProgressTracker) Percentage() float64 {
	pt.mu.Lock()
	defer pt.mu.Unlock()
	if pt.Total == 0 {
		return 0
	}
	return float64(pt.Completed) / float64(pt.Total) * 100
}

// ETA returns the estimated time to completion based on the rate so far.
// Returns 0 if there is not enough data to estimate.
func (pt *ProgressTracker) ETA() time.Duration {
	pt.mu.Lock()
	defer pt.mu.Unlock()
	return pt.etaLocked()
}

func (pt *ProgressTracker) etaLocked() time.Duration {
	if pt.Completed == 0 {
		return 0
	}
	remaining := pt.Total - pt.Completed
	if remaining <= 0 {
		return 0
	}

	elapsed := pt.now().Sub(pt.StartTime)
	perUnit := elapsed / time.Duration(pt.Completed)
	return perUnit * time.Duration(remaining)
}

// LogProgress logs the current progress with ETA.
func (pt *ProgressTracker) LogProgress(logger interfaces.Logger, label string) {
	pt.mu.Lock()
	defer pt.mu.Unlock()

	var pct float64
	if pt.Total > 0 {
		pct = float64(pt.Completed) / float64(pt.Total) * 100
	}
	elapsed := pt.now().Sub(pt.StartTime)

	logger.Info("%s: %d/%d (%.1f%%) | failed=%d | elapsed=%s | ETA=%s",
		label, pt.Completed, pt.Total, pct, pt.Failed,
		helpers.FormatDuration(elapsed.Truncate(time.Second)),
		helpers.FormatDuration(pt.etaLocked().Truncate(time.Second)))
}
