// =============================================================================
// pkg/types/types.go - Core Data Types
// =============================================================================
//
// This package contains pure data types used throughout the block-profiling-workflow.
// These types have no external dependencies beyond the standard library.
//
// =============================================================================

package types

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// =============================================================================
// Constants
// =============================================================================

const (
	// MB is megabytes in bytes
	MB = 1024 * 1024

	// GB is gigabytes in bytes
	GB = 1024 * 1024 * 1024

	// DefaultJobs is the default number of concurrent prover invocations.
	DefaultJobs = 4

	// RAMWarningThresholdGB is the RSS threshold that triggers a warning.
	RAMWarningThresholdGB = 32

	// Unavailable is the marker written to report cells that have no value.
	Unavailable = "N/A"

	// ObservationBytes is the buffer footprint of one accumulated observation
	// (one uint64 cycles value plus one uint64 gas value).
	ObservationBytes = 16
)

// Environment variables understood by the prover binary.
const (
	EnvTraceFile = "TRACE_FILE"
	EnvDevMode   = "RISC0_DEV_MODE"
	EnvRustLog   = "RUST_LOG"
	EnvRisc0Info = "RISC0_INFO"
	EnvEthRPCURL = "ETH_RPC_URL"
)

// Defaults and file naming conventions.
const (
	DefaultRPCURL  = "https://ethereum-rpc.publicnode.com"
	DefaultCLIBin  = "./target/release/cli"
	DefaultAction  = "prove"
	DefaultInputs  = "cache"
	InputPrefix    = "input_"
	InputSuffix    = ".json"
	ArtifactPrefix = "trace_"
	ArtifactSuffix = ".json.gz"
)

// =============================================================================
// Mode Enum
// =============================================================================

// Mode selects what a run measures.
//
//	BENCHMARK:
//	  - Prover runs with tracing disabled
//	  - Scalar metrics are parsed from stdout, one report row per block
//
//	TRACE:
//	  - Prover runs with the cycle tracker enabled and writes a telemetry artifact
//	  - Artifacts are merged into per-counter series, one report row per counter
type Mode string

const (
	ModeBenchmark Mode = "benchmark"
	ModeTrace     Mode = "trace"
)

// String returns the string representation of the mode.
func (m Mode) String() string {
	return string(m)
}

// =============================================================================
// Observation - One (cycles, gas) Measurement
// =============================================================================

// Observation is one measured cost event attributed to a named counter.
//
// WIRE FORMAT:
//
//	[cycles, gas]   (2-element JSON array of non-negative integers)
type Observation struct {
	Cycles uint64
	Gas    uint64
}

// UnmarshalJSON decodes a [cycles, gas] pair.
func (o *Observation) UnmarshalJSON(data []byte) error {
	var pair []uint64
	if err := json.Unmarshal(data, &pair); err != nil {
		return fmt.Errorf("observation is not an array of non-negative integers: %w", err)
	}
	if len(pair) != 2 {
		return fmt.Errorf("observation has %d elements, want 2", len(pair))
	}
	o.Cycles, o.Gas = pair[0], pair[1]
	return nil
}

// MarshalJSON encodes the observation as a [cycles, gas] pair.
func (o Observation) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]uint64{o.Cycles, o.Gas})
}

// Artifact is the decoded content of one telemetry file: counter name to
// observations in emission order.
type Artifact map[string][]Observation

// Observations returns the total number of observations across all counters.
func (a Artifact) Observations() int {
	n := 0
	for _, obs := range a {
		n += len(obs)
	}
	return n
}

// =============================================================================
// ExecutionUnit - One Prover Invocation
// =============================================================================

// ExecutionUnit is one input file to run the prover against.
type ExecutionUnit struct {
	// Ordinal is the position of the unit in the sorted input list (0-based).
	Ordinal int

	// BlockID is the block identifier taken from the input file name,
	// e.g. "0x1234" for "input_0x1234.json".
	BlockID string

	// InputPath is the path of the cached input file.
	InputPath string
}

// ArtifactName returns the scratch file name of this unit's telemetry artifact.
func (u ExecutionUnit) ArtifactName() string {
	return ArtifactPrefix + u.BlockID + ArtifactSuffix
}

// =============================================================================
// SummaryRow - Per-Counter Statistics
// =============================================================================

// SummaryRow holds the final statistics of one counter.
//
// The cpg triple (MinCPG, MedianCPG, MaxCPG) is only meaningful when HasCPG is
// true; Count is the number of observations with gas > 0.
type SummaryRow struct {
	Name         string
	Count        int
	HasCPG       bool
	MinCPG       uint64
	MedianCPG    uint64
	MaxCPG       uint64
	MinCycles    uint64
	MedianCycles uint64
	MaxCycles    uint64
	TotalCycles  uint64
}

// TraceReportHeader is the column set of the trace report.
var TraceReportHeader = []string{
	"name", "count",
	"min cpg", "median cpg", "max cpg",
	"min cycles", "median cycles", "max cycles",
	"total cycles",
}

// Record renders the row in TraceReportHeader column order.
func (r SummaryRow) Record() []string {
	cpg := func(v uint64) string {
		if !r.HasCPG {
			return Unavailable
		}
		return strconv.FormatUint(v, 10)
	}
	return []string{
		r.Name,
		strconv.Itoa(r.Count),
		cpg(r.MinCPG), cpg(r.MedianCPG), cpg(r.MaxCPG),
		strconv.FormatUint(r.MinCycles, 10),
		strconv.FormatUint(r.MedianCycles, 10),
		strconv.FormatUint(r.MaxCycles, 10),
		strconv.FormatUint(r.TotalCycles, 10),
	}
}

// =============================================================================
// BenchmarkRow - Per-Block Scalar Metrics
// =============================================================================

// BenchmarkReportHeader is the column set of the benchmark report.
var BenchmarkReportHeader = []string{
	"block_number", "execution_time",
	"total_cycles", "user_cycles", "paging_cycles", "bigint_cycles",
	"keccak_calls", "gas_used",
}

// BenchmarkRow holds the report cells of one benchmarked block.
// Every field is already formatted; missing values hold Unavailable.
type BenchmarkRow struct {
	BlockNumber   string
	ExecutionTime string
	TotalCycles   string
	UserCycles    string
	PagingCycles  string
	BigIntCycles  string
	KeccakCalls   string
	GasUsed       string
}

// Record renders the row in BenchmarkReportHeader column order.
func (r BenchmarkRow) Record() []string {
	return []string{
		r.BlockNumber, r.ExecutionTime,
		r.TotalCycles, r.UserCycles, r.PagingCycles, r.BigIntCycles,
		r.KeccakCalls, r.GasUsed,
	}
}

// =============================================================================
// BlockInfo - Remote Block Metadata
// =============================================================================

// BlockInfo is the subset of block header fields used in reports.
type BlockInfo struct {
	Number  uint64
	GasUsed uint64
}

// =============================================================================
// LatencySummary - Computed Latency Statistics
// =============================================================================

// LatencySummary contains computed latency statistics.
type LatencySummary struct {
	Count  int           // Number of samples
	Min    time.Duration // Minimum latency
	Max    time.Duration // Maximum latency
	Avg    time.Duration // Average (mean) latency
	StdDev time.Duration // Standard deviation
	P50    time.Duration // 50th percentile (median)
	P90    time.Duration // 90th percentile
	P95    time.Duration // 95th percentile
	P99    time.Duration // 99th percentile
}
