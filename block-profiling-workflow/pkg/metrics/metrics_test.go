package metrics

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/karthikiyer56/block-proving-profiler/block-profiling-workflow/pkg/logging"
)

func TestUnitFinished(t *testing.T) {
	m := New()
	m.UnitFinished("trace", false, 2*time.Second)
	m.UnitFinished("trace", false, 3*time.Second)
	m.UnitFinished("trace", true, time.Second)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.UnitsTotal.WithLabelValues("trace", StatusSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.UnitsTotal.WithLabelValues("trace", StatusFailed)))
	assert.Equal(t, 1, testutil.CollectAndCount(m.InvocationSeconds))
}

func TestArtifacts(t *testing.T) {
	m := New()
	m.ArtifactMerged(10, 3)
	m.ArtifactMerged(5, 4)
	m.ArtifactCorrupt()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.ArtifactsTotal.WithLabelValues(StatusSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ArtifactsTotal.WithLabelValues(StatusCorrupt)))
	assert.Equal(t, 15.0, testutil.ToFloat64(m.ObservationsMerged))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.Counters))
}

func TestMetadataLookup(t *testing.T) {
	m := New()
	m.MetadataLookup(true)
	m.MetadataLookup(false)
	m.MetadataLookup(false)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.MetadataLookupsTotal.WithLabelValues(StatusSuccess)))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.MetadataLookupsTotal.WithLabelValues(StatusUnavailable)))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.UnitFinished("benchmark", true, time.Second)
		m.ArtifactMerged(1, 1)
		m.ArtifactCorrupt()
		m.MetadataLookup(false)
		m.LogSummary(logging.NewConsoleLogger(io.Discard))
	})
}

func TestLogSummary(t *testing.T) {
	m := New()
	m.UnitFinished("benchmark", false, time.Second)

	var out bytes.Buffer
	m.LogSummary(logging.NewConsoleLogger(&out))
	assert.Contains(t, out.String(), "block_profiler_units_total{mode=benchmark,status=success} = 1")
	assert.NotContains(t, out.String(), "invocation_duration_seconds")
}

func TestServe(t *testing.T) {
	m := New()
	m.ArtifactMerged(7, 1)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var out bytes.Buffer
	require.NoError(t, m.Serve(ctx, "127.0.0.1:0", logging.NewConsoleLogger(&out)))

	addr := out.String()
	start := bytes.Index([]byte(addr), []byte("http://"))
	require.GreaterOrEqual(t, start, 0)
	url := addr[start:]
	url = url[:bytes.IndexByte([]byte(url), '\n')]

	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "block_profiler_observations_merged_total 7")
}

func TestServe_BadAddress(t *testing.T) {
	m := New()
	err := m.Serve(context.Background(), "not-an-address", logging.NewConsoleLogger(io.Discard))
	assert.Error(t, err)
}
