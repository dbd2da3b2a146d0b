// =============================================================================
// pkg/benchmark/extract.go - Scalar Metric Extraction from Prover Output
// =============================================================================
//
// With RISC0_INFO=true the prover prints a session summary on stdout:
//
//	execution time: 812.35ms
//	1048576 total cycles
//	917504 user cycles
//	131072 paging cycles
//	... BigInt calls, 4096 cycles
//	27 Keccak calls
//
// Each metric is one row of the Extractions table: a label, a pattern whose
// first group is the value, and a default used when the pattern is absent.
// The first match in the output wins.
//
// =============================================================================

package benchmark

import (
	"regexp"
	"strconv"

	"github.com/karthikiyer56/block-proving-profiler/block-profiling-workflow/pkg/types"
)

// Metric labels.
const (
	LabelExecutionTime = "execution_time"
	LabelTotalCycles   = "total_cycles"
	LabelUserCycles    = "user_cycles"
	LabelPagingCycles  = "paging_cycles"
	LabelBigIntCycles  = "bigint_cycles"
	LabelKeccakCalls   = "keccak_calls"
)

// Extraction describes how to read one metric.
type Extraction struct {
	Label   string
	Pattern *regexp.Regexp
	Default string

	// Format turns the submatches into the cell value; nil means group 1.
	Format func(match []string) string
}

// Extractions is the metric table, in report column order.
var Extractions = []Extraction{
	{
		Label:   LabelExecutionTime,
		Pattern: regexp.MustCompile(`execution time: ([0-9.]+)(ms|s)`),
		Default: types.Unavailable,
		Format:  formatExecutionTime,
	},
	{Label: LabelTotalCycles, Pattern: regexp.MustCompile(`(\d+) total cycles`), Default: types.Unavailable},
	{Label: LabelUserCycles, Pattern: regexp.MustCompile(`(\d+) user cycles`), Default: types.Unavailable},
	{Label: LabelPagingCycles, Pattern: regexp.MustCompile(`(\d+) paging cycles`), Default: types.Unavailable},
	{Label: LabelBigIntCycles, Pattern: regexp.MustCompile(`BigInt calls, (\d+) cycles`), Default: types.Unavailable},
	{Label: LabelKeccakCalls, Pattern: regexp.MustCompile(`(\d+) Keccak calls`), Default: types.Unavailable},
}

// formatExecutionTime normalises the execution time to seconds.
// Millisecond values are converted and printed with 6 decimals; second values
// are kept as printed.
func formatExecutionTime(match []string) string {
	value, unit := match[1], match[2]
	if unit != "ms" {
		return value
	}
	ms, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return types.Unavailable
	}
	return strconv.FormatFloat(ms/1000, 'f', 6, 64)
}

// Extract applies every extraction to output and returns label → value.
// Every label in the table is present in the result.
func Extract(output string) map[string]string {
	values := make(map[string]string, len(Extractions))
	for _, e := range Extractions {
		values[e.Label] = e.apply(output)
	}
	return values
}

func (e Extraction) apply(output string) string {
	match := e.Pattern.FindStringSubmatch(output)
	if match == nil {
		return e.Default
	}
	if e.Format != nil {
		return e.Format(match)
	}
	return match[1]
}

// ParseRow builds a benchmark row from prover stdout and optional block
// metadata. A nil info leaves the block number and gas used unavailable.
func ParseRow(stdout []byte, info *types.BlockInfo) types.BenchmarkRow {
	v := Extract(string(stdout))

	row := types.BenchmarkRow{
		BlockNumber:   types.Unavailable,
		ExecutionTime: v[LabelExecutionTime],
		TotalCycles:   v[LabelTotalCycles],
		UserCycles:    v[LabelUserCycles],
		PagingCycles:  v[LabelPagingCycles],
		BigIntCycles:  v[LabelBigIntCycles],
		KeccakCalls:   v[LabelKeccakCalls],
		GasUsed:       types.Unavailable,
	}
	if info != nil {
		row.BlockNumber = strconv.FormatUint(info.Number, 10)
		row.GasUsed = strconv.FormatUint(info.GasUsed, 10)
	}
	return row
}
