package memory

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/karthikiyer56/block-proving-profiler/block-profiling-workflow/pkg/logging"
	"github.com/karthikiyer56/block-proving-profiler/block-profiling-workflow/pkg/types"
)

func TestMemoryMonitor_WarnsOncePerBreach(t *testing.T) {
	var out bytes.Buffer
	m := NewMemoryMonitor(logging.NewConsoleLogger(&out), 1)

	samples := []int64{2 * types.GB, 3 * types.GB, types.GB / 2, 2 * types.GB}
	i := 0
	m.rss = func() int64 {
		v := samples[i]
		i++
		return v
	}

	for range samples {
		m.Check()
	}

	assert.Equal(t, 2, strings.Count(out.String(), "MEMORY WARNING"))
	assert.InDelta(t, 3.0, m.PeakRSSGB(), 0.0001)
}

func TestGetRSSBytes_Positive(t *testing.T) {
	assert.Greater(t, GetRSSBytes(), int64(0))
}
