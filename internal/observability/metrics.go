package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the operation metrics of one eepromctl run. It uses its own
// registry so the textfile contains nothing but these series.
type Metrics struct {
	registry *prometheus.Registry

	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	records    *prometheus.CounterVec
	lastRun    *prometheus.GaugeVec
}

// NewMetrics creates and registers the operation metrics.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		operations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "eepromctl",
				Subsystem: "operation",
				Name:      "total",
				Help:      "Programmer operations by outcome.",
			},
			[]string{"port", "operation", "status"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "eepromctl",
				Subsystem: "operation",
				Name:      "duration_seconds",
				Help:      "Programmer operation duration in seconds.",
				Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120},
			},
			[]string{"port", "operation"},
		),
		records: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "eepromctl",
				Subsystem: "write",
				Name:      "records_total",
				Help:      "Records sent or skipped by write operations.",
			},
			[]string{"port", "kind"},
		),
		lastRun: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "eepromctl",
				Subsystem: "operation",
				Name:      "last_run_timestamp_seconds",
				Help:      "Unix time of the last operation.",
			},
			[]string{"port", "operation"},
		),
	}
	m.registry.MustRegister(m.operations, m.duration, m.records, m.lastRun)
	return m
}

// Registry returns the registry holding the metrics.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// RecordOperation counts one finished operation.
func (m *Metrics) RecordOperation(port, operation, status string, duration time.Duration) {
	m.operations.WithLabelValues(port, operation, status).Inc()
	m.duration.WithLabelValues(port, operation).Observe(duration.Seconds())
	m.lastRun.WithLabelValues(port, operation).SetToCurrentTime()
}

// RecordWrite counts the records of a write.
func (m *Metrics) RecordWrite(port string, written, skipped int) {
	m.records.WithLabelValues(port, "written").Add(float64(written))
	m.records.WithLabelValues(port, "skipped").Add(float64(skipped))
}

// WriteTextfile writes the metrics in the text exposition format for the
// node_exporter textfile collector.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}
