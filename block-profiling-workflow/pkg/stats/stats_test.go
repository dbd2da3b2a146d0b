package stats

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/karthikiyer56/block-proving-profiler/block-profiling-workflow/pkg/logging"
)

func TestLatencyStats_Summary(t *testing.T) {
	ls := NewLatencyStats()
	assert.Equal(t, 0, ls.Summary().Count)

	for i := 1; i <= 100; i++ {
		ls.Add(time.Duration(i) * time.Millisecond)
	}

	s := ls.Summary()
	assert.Equal(t, 100, s.Count)
	assert.Equal(t, time.Millisecond, s.Min)
	assert.Equal(t, 100*time.Millisecond, s.Max)
	assert.Equal(t, 50*time.Millisecond, s.P50)
	assert.Equal(t, 90*time.Millisecond, s.P90)
	assert.Equal(t, 99*time.Millisecond, s.P99)
	assert.Contains(t, FormatLatency(s), "count=100")
}

func TestProgressTracker(t *testing.T) {
	pt := NewProgressTracker(4)
	now := pt.StartTime
	pt.now = func() time.Time { return now }

	assert.Equal(t, time.Duration(0), pt.ETA())

	pt.Done(false)
	now = now.Add(10 * time.Second)
	assert.Equal(t, 30*time.Second, pt.ETA())

	pt.Done(true)
	assert.InDelta(t, 50.0, pt.Percentage(), 0.001)

	var out bytes.Buffer
	pt.LogProgress(logging.NewConsoleLogger(&out), "Units")
	assert.Contains(t, out.String(), "Units: 2/4 (50.0%) | failed=1")
}
