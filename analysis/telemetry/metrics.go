// Package telemetry tracks pipeline counters for a single analysis run.
//
// Metrics:
//   - tracestat_records_loaded_total: call records read from the input
//   - tracestat_duplicate_records_total: records dropped by deduplication
//   - tracestat_stateful_calls_total: unique stateful call records
//   - tracestat_traces_total: distinct traces
//   - tracestat_services: services per resolved meta type
//   - tracestat_stage_duration_seconds: wall time per pipeline stage
//
// A run is a batch job, so metrics are pushed to a Prometheus Pushgateway
// at the end rather than scraped.
package telemetry

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

const namespace = "tracestat"

// Metrics holds the counters of one run on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	RecordsLoaded    prometheus.Counter
	DuplicateRecords prometheus.Counter
	StatefulCalls    prometheus.Counter
	Traces           prometheus.Counter
	Services         *prometheus.GaugeVec
	StageDuration    *prometheus.GaugeVec
}

// New creates and registers the run metrics. app is attached as a constant
// label to every series.
func New(app string) *Metrics {
	labels := prometheus.Labels{"app": app}
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		RecordsLoaded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "records_loaded_total",
			Help:        "Call records read from the input",
			ConstLabels: labels,
		}),
		DuplicateRecords: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "duplicate_records_total",
			Help:        "Call records dropped as exact duplicates",
			ConstLabels: labels,
		}),
		StatefulCalls: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "stateful_calls_total",
			Help:        "Unique stateful call records",
			ConstLabels: labels,
		}),
		Traces: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "traces_total",
			Help:        "Distinct traces analyzed",
			ConstLabels: labels,
		}),
		Services: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        "services",
			Help:        "Services per resolved meta type",
			ConstLabels: labels,
		}, []string{"meta_type"}),
		StageDuration: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        "stage_duration_seconds",
			Help:        "Wall time spent per pipeline stage",
			ConstLabels: labels,
		}, []string{"stage"}),
	}
	m.registry.MustRegister(
		m.RecordsLoaded,
		m.DuplicateRecords,
		m.StatefulCalls,
		m.Traces,
		m.Services,
		m.StageDuration,
	)
	return m
}

// Registry exposes the private registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveStage records how long a stage took since start.
func (m *Metrics) ObserveStage(stage string, start time.Time) {
	m.StageDuration.WithLabelValues(stage).Set(time.Since(start).Seconds())
}

// Push sends all metrics to the Pushgateway at url under the given job,
// grouped by run ID.
func (m *Metrics) Push(ctx context.Context, url, job, runID string) error {
	err := push.New(url, job).
		Gatherer(m.registry).
		Grouping("run_id", runID).
		PushContext(ctx)
	if err != nil {
		return fmt.Errorf("pushing metrics to %s: %w", url, err)
	}
	return nil
}
