// =============================================================================
// pkg/series/accumulator.go - Per-Counter Series Accumulation
// =============================================================================
//
// The Accumulator folds decoded telemetry artifacts into flat per-counter
// buffers. Each counter owns two parallel slices (cycles and gas) that only
// ever grow. Values are copied out of the artifact on Merge, so the caller can
// drop the decoded artifact as soon as Merge returns.
//
// MEMORY BOUND:
//
//	peak = (all observations merged so far) × 16 bytes + (one decoded artifact)
//
// As long as callers decode and merge one artifact at a time, the number of
// artifacts in the run does not change the peak.
//
// =============================================================================

package series

import (
	"sort"
	"sync"

	"github.com/karthikiyer56/block-proving-profiler/block-profiling-workflow/pkg/types"
)

// buffers holds the accumulated values of one counter.
// cycles[i] and gas[i] belong to the same observation.
type buffers struct {
	cycles []uint64
	gas    []uint64
}

// Accumulator merges artifacts into per-counter series.
//
// THREAD SAFETY:
//
//	All methods are safe for concurrent use. Merge is the only mutating
//	operation; it holds the lock for the whole artifact, so a concurrent
//	reader never sees a half-merged artifact.
type Accumulator struct {
	mu           sync.Mutex
	series       map[string]*buffers
	observations int64
	artifacts    int
}

// NewAccumulator creates an empty Accumulator.
func NewAccumulator() *Accumulator {
	return &Accumulator{
		series: make(map[string]*buffers),
	}
}

// Merge appends every observation of the artifact to its counter's series,
// creating the series on first sight of a name. Counters with no observations
// are ignored. Returns the number of observations merged.
//
// Merge is additive: merging the same artifact twice doubles its counts.
func (a *Accumulator) Merge(artifact types.Artifact) int {
	a.mu.Lock()
	defer a.mu.Unlock()

	merged := 0
	for name, obs := range artifact {
		if len(obs) == 0 {
			continue
		}
		b, ok := a.series[name]
		if !ok {
			b = &buffers{
				cycles: make([]uint64, 0, len(obs)),
				gas:    make([]uint64, 0, len(obs)),
			}
			a.series[name] = b
		}
		for _, o := range obs {
			b.cycles = append(b.cycles, o.Cycles)
			b.gas = append(b.gas, o.Gas)
		}
		merged += len(obs)
	}

	a.observations += int64(merged)
	a.artifacts++
	return merged
}

// Names returns the counter names in ascending order.
func (a *Accumulator) Names() []string {
	a.mu.Lock()
	defer a.mu.Unlock()

	names := make([]string, 0, len(a.series))
	for name := range a.series {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Series returns the accumulated cycles and gas values of a counter.
//
// The returned slices alias the Accumulator's buffers: callers must not
// modify them, and must not hold them across a later Merge.
func (a *Accumulator) Series(name string) (cycles, gas []uint64, ok bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	b, ok := a.series[name]
	if !ok {
		return nil, nil, false
	}
	return b.cycles, b.gas, true
}

// Len returns the number of distinct counters.
func (a *Accumulator) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.series)
}

// Observations returns the total number of observations merged.
func (a *Accumulator) Observations() int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.observations
}

// Artifacts returns the number of Merge calls.
func (a *Accumulator) Artifacts() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.artifacts
}

// Footprint returns the bytes held by the value buffers (capacity, not length).
func (a *Accumulator) Footprint() int64 {
	a.mu.Lock()
	defer a.mu.Unlock()

	var total int64
	for _, b := range a.series {
		total += int64(cap(b.cycles)+cap(b.gas)) * types.ObservationBytes / 2
	}
	return total
}
