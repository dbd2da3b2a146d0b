// =============================================================================
// pkg/stats/summary.go - Per-Counter Order Statistics
// =============================================================================
//
// Reduces accumulated (cycles, gas) series into SummaryRows.
//
// ALGORITHM (per counter):
//
//	cpg    = [cycles[i] / gas[i] for i where gas[i] > 0]   (integer floor division)
//	sorted = sort(cpg), sort(copy(cycles))
//	count  = len(cpg)
//	min/median/max read at 0, middle, last of each sorted list
//	total  = sum(cycles)
//
// Medians are exact. For an even length the result is the floor average of
// the two middle elements; nothing is computed in floating point.
//
// A counter without any gas > 0 observation still gets its cycle statistics;
// its cpg triple is reported as unavailable. A counter without observations
// gets no row.
//
// =============================================================================

package stats

import (
	"slices"

	"github.com/karthikiyer56/block-proving-profiler/block-profiling-workflow/pkg/types"
)

// SeriesSource is the read side of an accumulator.
type SeriesSource interface {
	// Names returns the counter names; order is not relied on.
	Names() []string

	// Series returns the cycles and gas values of one counter.
	// The slices are only read.
	Series(name string) (cycles, gas []uint64, ok bool)
}

// Median returns the exact median of an ascending slice.
// The slice must be non-empty.
func Median(sorted []uint64) uint64 {
	n := len(sorted)
	mid := n / 2
	if n%2 == 1 {
		return sorted[mid]
	}
	lo, hi := sorted[mid-1], sorted[mid]
	return lo + (hi-lo)/2
}

// Summarize computes the SummaryRow of one counter.
// Returns false when the counter has no observations.
func Summarize(name string, cycles, gas []uint64) (types.SummaryRow, bool) {
	if len(cycles) == 0 {
		return types.SummaryRow{}, false
	}

	cpg := make([]uint64, 0, len(cycles))
	var total uint64
	for i, c := range cycles {
		total += c
		if i < len(gas) && gas[i] > 0 {
			cpg = append(cpg, c/gas[i])
		}
	}

	sortedCycles := slices.Clone(cycles)
	slices.Sort(sortedCycles)

	row := types.SummaryRow{
		Name:         name,
		Count:        len(cpg),
		MinCycles:    sortedCycles[0],
		MedianCycles: Median(sortedCycles),
		MaxCycles:    sortedCycles[len(sortedCycles)-1],
		TotalCycles:  total,
	}

	if len(cpg) > 0 {
		slices.Sort(cpg)
		row.HasCPG = true
		row.MinCPG = cpg[0]
		row.MedianCPG = Median(cpg)
		row.MaxCPG = cpg[len(cpg)-1]
	}

	return row, true
}

// SummarizeAll computes one row per non-empty counter, sorted by name.
func SummarizeAll(src SeriesSource) []types.SummaryRow {
	names := src.Names()
	slices.Sort(names)

	rows := make([]types.SummaryRow, 0, len(names))
	for _, name := range names {
		cycles, gas, ok := src.Series(name)
		if !ok {
			continue
		}
		if row, ok := Summarize(name, cycles, gas); ok {
			rows = append(rows, row)
		}
	}
	return rows
}
