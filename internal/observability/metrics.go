// Package observability exposes prometheus metrics for workflow runs. Each
// App instance gets its own registry so parallel instances (and tests) never
// collide.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Metrics holds the collectors for one application instance.
type Metrics struct {
	registry *prometheus.Registry

	// Workflow runs by outcome. Watch for: failure ratio per workflow.
	RunsTotal *prometheus.CounterVec

	// Matrix combinations by outcome. One run fans out to N combinations.
	CombinationsTotal *prometheus.CounterVec

	// Step executions by runner type and outcome. "advisory_failure" means
	// the step failed but continue_on_error kept the run green.
	StepsTotal *prometheus.CounterVec

	// Step latency by runner type. Watch for: slow external tools.
	StepDuration *prometheus.HistogramVec
}

// New creates a Metrics instance backed by a fresh registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)

	m := &Metrics{registry: registry}

	m.RunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gridciRunsTotal",
			Help: "Total number of workflow runs",
		},
		[]string{"workflow", "status"},
	)
	m.CombinationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gridciCombinationsTotal",
			Help: "Total number of matrix combinations executed",
		},
		[]string{"workflow", "status"},
	)
	m.StepsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gridciStepsTotal",
			Help: "Total number of step executions",
		},
		[]string{"runner", "status"},
	)
	m.StepDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gridciStepDurationSeconds",
			Help:    "Step execution latency in seconds",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
		[]string{"runner"},
	)

	registry.MustRegister(m.RunsTotal, m.CombinationsTotal, m.StepsTotal, m.StepDuration)
	return m
}

// Registry exposes the instance registry for the /metrics endpoint.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveStep implements the executor's StepObserver contract.
func (m *Metrics) ObserveStep(runnerType, status string, seconds float64) {
	m.StepsTotal.WithLabelValues(runnerType, status).Inc()
	m.StepDuration.WithLabelValues(runnerType).Observe(seconds)
}

// ObserveCombination records a combination outcome.
func (m *Metrics) ObserveCombination(workflow, status string) {
	m.CombinationsTotal.WithLabelValues(workflow, status).Inc()
}

// ObserveRun records a whole-run outcome.
func (m *Metrics) ObserveRun(workflow, status string) {
	m.RunsTotal.WithLabelValues(workflow, status).Inc()
}
