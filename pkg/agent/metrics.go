package agent

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles the runner's own prometheus collectors.
type Metrics struct {
	ProbeRuns      *prometheus.CounterVec
	ProbeFailures  *prometheus.CounterVec
	RecordsEmitted *prometheus.CounterVec
	SinkErrors     prometheus.Counter
	SnapshotErrors prometheus.Counter
	CycleDuration  prometheus.Histogram

	gatherer prometheus.Gatherer
}

// NewMetrics creates the collectors and registers them on registry.
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		ProbeRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "helioscope_probe_runs_total",
			Help: "Total number of probe invocations.",
		}, []string{"probe"}),
		ProbeFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "helioscope_probe_failures_total",
			Help: "Total number of probe invocations that returned an error or panicked.",
		}, []string{"probe"}),
		RecordsEmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "helioscope_records_emitted_total",
			Help: "Total number of records forwarded to the sink.",
		}, []string{"probe"}),
		SinkErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "helioscope_sink_errors_total",
			Help: "Total number of records the sink failed to accept.",
		}),
		SnapshotErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "helioscope_snapshot_errors_total",
			Help: "Total number of cycles aborted because no snapshot could be taken.",
		}),
		CycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "helioscope_cycle_duration_seconds",
			Help:    "Duration of one collection cycle in seconds.",
			Buckets: prometheus.DefBuckets,
		}),
		gatherer: registry,
	}

	registry.MustRegister(
		m.ProbeRuns,
		m.ProbeFailures,
		m.RecordsEmitted,
		m.SinkErrors,
		m.SnapshotErrors,
		m.CycleDuration,
	)

	return m
}

// WriteTextfile writes every registered metric to path in the text
// exposition format, for node_exporter's textfile collector.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.gatherer); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}
	return nil
}
