package benchmark

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/karthikiyer56/block-proving-profiler/block-profiling-workflow/pkg/types"
)

const sampleOutput = `2025-01-10T12:00:00Z INFO risc0_zkvm::host::server::exec::executor: execution time: 812.35ms
2025-01-10T12:00:00Z INFO risc0_zkvm::host::server::session: number of segments: 3
2025-01-10T12:00:00Z INFO risc0_zkvm::host::server::session: 3145728 total cycles
2025-01-10T12:00:00Z INFO risc0_zkvm::host::server::session: 2883584 user cycles (91.67%)
2025-01-10T12:00:00Z INFO risc0_zkvm::host::server::session: 262144 paging cycles (8.33%)
2025-01-10T12:00:00Z INFO zeth: 112 BigInt calls, 40960 cycles
2025-01-10T12:00:00Z INFO zeth: 27 Keccak calls
`

func TestExtract_AllMetrics(t *testing.T) {
	v := Extract(sampleOutput)
	assert.Equal(t, map[string]string{
		LabelExecutionTime: "0.812350",
		LabelTotalCycles:   "3145728",
		LabelUserCycles:    "2883584",
		LabelPagingCycles:  "262144",
		LabelBigIntCycles:  "40960",
		LabelKeccakCalls:   "27",
	}, v)
}

func TestExtract_Defaults(t *testing.T) {
	v := Extract("nothing useful here")
	assert.Len(t, v, len(Extractions))
	for _, e := range Extractions {
		assert.Equal(t, types.Unavailable, v[e.Label], e.Label)
	}
}

func TestExecutionTime(t *testing.T) {
	tests := []struct {
		line string
		want string
	}{
		{"execution time: 1500ms", "1.500000"},
		{"execution time: 0.5ms", "0.000500"},
		{"execution time: 12.75s", "12.75"},
		{"execution time: 3s", "3"},
		{"execution time: ...ms", types.Unavailable},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			assert.Equal(t, tt.want, Extract(tt.line)[LabelExecutionTime])
		})
	}
}

func TestExtract_FirstMatchWins(t *testing.T) {
	v := Extract("10 Keccak calls\n20 Keccak calls\n")
	assert.Equal(t, "10", v[LabelKeccakCalls])
}

func TestParseRow(t *testing.T) {
	row := ParseRow([]byte(sampleOutput), &types.BlockInfo{Number: 19000000, GasUsed: 15000000})
	assert.Equal(t,
		[]string{"19000000", "0.812350", "3145728", "2883584", "262144", "40960", "27", "15000000"},
		row.Record())

	row = ParseRow([]byte("execution time: 2s"), nil)
	assert.Equal(t,
		[]string{"N/A", "2", "N/A", "N/A", "N/A", "N/A", "N/A", "N/A"},
		row.Record())
}
