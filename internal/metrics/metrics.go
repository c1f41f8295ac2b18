// Package metrics records conformance run metrics in a private Prometheus
// registry and exports them in the node-exporter textfile format.
package metrics

import (
	"fmt"

	"github.com/moamenhredeen/oasconform/internal/models"
	"github.com/prometheus/client_golang/prometheus"
)

// Recorder holds the Prometheus metrics of one run
type Recorder struct {
	registry *prometheus.Registry

	// By outcome and error kind
	verdicts *prometheus.CounterVec
	// By method and outcome
	responseTime *prometheus.HistogramVec
	// Per run
	runDuration prometheus.Gauge
}

// NewRecorder creates a recorder with its own registry
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),

		verdicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "oasconform",
			Subsystem: "conformance",
			Name:      "verdicts_total",
			Help:      "Total number of test case verdicts",
		}, []string{"outcome", "kind"}),

		responseTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "oasconform",
			Subsystem: "conformance",
			Name:      "response_time_seconds",
			Help:      "Time from dispatch to validated response in seconds",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"method", "outcome"}),

		runDuration: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "oasconform",
			Subsystem: "conformance",
			Name:      "run_duration_seconds",
			Help:      "Wall clock duration of the last run in seconds",
		}),
	}

	r.registry.MustRegister(r.verdicts, r.responseTime, r.runDuration)
	return r
}

// Observe records one verdict
func (r *Recorder) Observe(result models.TestResult) {
	if r == nil {
		return
	}
	r.verdicts.WithLabelValues(result.Outcome, result.Kind).Inc()
	if result.ResponseTime > 0 {
		r.responseTime.WithLabelValues(result.Method, result.Outcome).Observe(result.ResponseTime.Seconds())
	}
}

// ObserveSummary records the run duration
func (r *Recorder) ObserveSummary(summary models.TestSummary) {
	if r == nil {
		return
	}
	r.runDuration.Set(summary.Duration.Seconds())
}

// Registry exposes the registry, for tests and custom exporters
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// WriteFile writes all metrics to path in the Prometheus text format
func (r *Recorder) WriteFile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("failed to write metrics file: %w", err)
	}
	return nil
}
