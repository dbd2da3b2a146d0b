// =============================================================================
// pkg/metrics/metrics.go - Prometheus Instrumentation
// =============================================================================
//
// Every run owns its own registry, so two runs in one process (or two tests)
// never collide on metric names. The registry can be served over HTTP while a
// long sweep is in progress, and is always summarised in the final log.
//
// All methods are safe on a nil *Metrics, which records nothing.
//
// =============================================================================

package metrics

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	dto "github.com/prometheus/client_model/go"

	"github.com/karthikiyer56/block-proving-profiler/block-profiling-workflow/pkg/interfaces"
)

const namespace = "block_profiler"

// Status label values.
const (
	StatusSuccess     = "success"
	StatusFailed      = "failed"
	StatusCorrupt     = "corrupt"
	StatusUnavailable = "unavailable"
)

// Metrics holds the collectors of one run.
type Metrics struct {
	Registry *prometheus.Registry

	// UnitsTotal counts finished units. Labels: mode, status
	UnitsTotal *prometheus.CounterVec

	// ArtifactsTotal counts decoded artifacts. Labels: status (success, corrupt)
	ArtifactsTotal *prometheus.CounterVec

	// ObservationsMerged counts observations folded into the accumulator.
	ObservationsMerged prometheus.Counter

	// Counters is the number of distinct counters accumulated so far.
	Counters prometheus.Gauge

	// InvocationSeconds measures prover wall-clock time. Labels: mode
	InvocationSeconds *prometheus.HistogramVec

	// MetadataLookupsTotal counts block lookups. Labels: status (success, unavailable)
	MetadataLookupsTotal *prometheus.CounterVec
}

// New creates the collectors and registers them on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		UnitsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "units_total",
			Help:      "Execution units finished, by mode and status",
		}, []string{"mode", "status"}),
		ArtifactsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "artifacts_total",
			Help:      "Telemetry artifacts processed, by status",
		}, []string{"status"}),
		ObservationsMerged: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "observations_merged_total",
			Help:      "Observations merged into the accumulator",
		}),
		Counters: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "counters",
			Help:      "Distinct counters accumulated",
		}),
		InvocationSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "invocation_duration_seconds",
			Help:      "Wall-clock time of one prover invocation",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 14),
		}, []string{"mode"}),
		MetadataLookupsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "metadata_lookups_total",
			Help:      "Block metadata lookups, by status",
		}, []string{"status"}),
	}

	m.Registry.MustRegister(
		m.UnitsTotal,
		m.ArtifactsTotal,
		m.ObservationsMerged,
		m.Counters,
		m.InvocationSeconds,
		m.MetadataLookupsTotal,
	)
	return m
}

// UnitFinished records one finished unit and its duration.
func (m *Metrics) UnitFinished(mode string, failed bool, d time.Duration) {
	if m == nil {
		return
	}
	status := StatusSuccess
	if failed {
		status = StatusFailed
	}
	m.UnitsTotal.WithLabelValues(mode, status).Inc()
	m.InvocationSeconds.WithLabelValues(mode).Observe(d.Seconds())
}

// ArtifactMerged records a successfully merged artifact.
func (m *Metrics) ArtifactMerged(observations int, counters int) {
	if m == nil {
		return
	}
	m.ArtifactsTotal.WithLabelValues(StatusSuccess).Inc()
	m.ObservationsMerged.Add(float64(observations))
	m.Counters.Set(float64(counters))
}

// ArtifactCorrupt records an artifact that could not be decoded.
func (m *Metrics) ArtifactCorrupt() {
	if m == nil {
		return
	}
	m.ArtifactsTotal.WithLabelValues(StatusCorrupt).Inc()
}

// MetadataLookup records one block lookup.
func (m *Metrics) MetadataLookup(ok bool) {
	if m == nil {
		return
	}
	status := StatusSuccess
	if !ok {
		status = StatusUnavailable
	}
	m.MetadataLookupsTotal.WithLabelValues(status).Inc()
}

// Serve exposes the registry on addr at /metrics until ctx is cancelled.
// The listener is bound before Serve returns, so a bad address fails fast.
func (m *Metrics) Serve(ctx context.Context, addr string, logger interfaces.Logger) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return errors.Wrapf(err, "listen on %s", addr)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{}))
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()
	go func() {
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server stopped: %v", err)
		}
	}()

	logger.Info("Serving metrics on http://%s/metrics", ln.Addr())
	return nil
}

// LogSummary logs the value of every non-histogram series in the registry.
func (m *Metrics) LogSummary(logger interfaces.Logger) {
	if m == nil {
		return
	}
	families, err := m.Registry.Gather()
	if err != nil {
		logger.Error("failed to gather metrics: %v", err)
		return
	}

	logger.Info("METRICS:")
	for _, mf := range families {
		for _, metric := range mf.GetMetric() {
			value, ok := scalar(mf.GetType(), metric)
			if !ok {
				continue
			}
			logger.Info("  %s%s = %.0f", mf.GetName(), labels(metric), value)
		}
	}
	logger.Info("")
}

func scalar(t dto.MetricType, metric *dto.Metric) (float64, bool) {
	switch t {
	case dto.MetricType_COUNTER:
		return metric.GetCounter().GetValue(), true
	case dto.MetricType_GAUGE:
		return metric.GetGauge().GetValue(), true
	default:
		return 0, false
	}
}

func labels(metric *dto.Metric) string {
	pairs := metric.GetLabel()
	if len(pairs) == 0 {
		return ""
	}
	s := "{"
	for i, lp := range pairs {
		if i > 0 {
			s += ","
		}
		s += lp.GetName() + "=" + lp.GetValue()
	}
	return s + "}"
}
