package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/goblin-dev/goblin/internal/model"
)

const namespace = "goblin"

// Metrics collects batch counters for one CLI invocation. The CLI has no
// long-running process to scrape, so WriteTextfile dumps them for node_exporter.
type Metrics struct {
	registry *prometheus.Registry

	importRuns     *prometheus.CounterVec
	importRows     *prometheus.CounterVec
	importDuration prometheus.Histogram
	detected       prometheus.Gauge
}

// New registers every collector on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		importRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "import_runs_total",
			Help:      "Import runs by outcome.",
		}, []string{"status"}),
		importRows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "import_rows_total",
			Help:      "Data rows seen by imports, by outcome.",
		}, []string{"outcome"}),
		importDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "import_duration_seconds",
			Help:      "Wall time of import runs.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 4, 8),
		}),
		detected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "detected_subscriptions",
			Help:      "Candidates returned by the last detection run.",
		}),
	}
	m.registry.MustRegister(m.importRuns, m.importRows, m.importDuration, m.detected)
	return m
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveImport records the outcome of one import run.
func (m *Metrics) ObserveImport(result model.ImportResult, elapsed time.Duration, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.importRuns.WithLabelValues(status).Inc()
	m.importDuration.Observe(elapsed.Seconds())
	if err != nil {
		return
	}
	m.importRows.WithLabelValues("imported").Add(float64(result.Imported))
	m.importRows.WithLabelValues("duplicate").Add(float64(result.SkippedDuplicates))
}

// ObserveDetection records how many candidates a detection run produced.
func (m *Metrics) ObserveDetection(candidates int) {
	m.detected.Set(float64(candidates))
}

// WriteTextfile writes all metrics in the Prometheus text format. The write is
// atomic, so a collector never sees a partial file.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("writing metrics to %s: %w", path, err)
	}
	return nil
}
