package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	// Registry is the dedicated Prometheus registry of the service.
	Registry = prometheus.NewRegistry()

	// RouteOptimizations counts optimizer runs by method (provider, nearest_neighbor, fallback).
	RouteOptimizations = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "route_optimizations_total", Help: "Route optimizations by method."},
		[]string{"method"},
	)
	// ProviderLatency tracks routing provider call latency in seconds by outcome.
	ProviderLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "route_provider_call_seconds", Help: "Routing provider call latency.", Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10}},
		[]string{"outcome"},
	)
	// StateTransitions counts visit and trip transitions by entity, target state and result.
	StateTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "state_transitions_total", Help: "Visit and trip state transitions."},
		[]string{"entity", "to", "result"},
	)
	// ScheduleChanges counts visits created, updated and deleted by the generator.
	ScheduleChanges = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "schedule_visit_changes_total", Help: "Schedule visit changes by kind."},
		[]string{"kind"},
	)
	// JobRuns counts periodic job runs by job and outcome (ok, error, skipped).
	JobRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "job_runs_total", Help: "Periodic job runs by outcome."},
		[]string{"job", "outcome"},
	)
	// Notifications counts notification sends by type and status.
	Notifications = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "notifications_total", Help: "Notifications sent by type and status."},
		[]string{"type", "status"},
	)
	// OperationDuration records timed operations in seconds.
	OperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "operation_duration_seconds", Help: "Duration of timed operations.", Buckets: prometheus.DefBuckets},
		[]string{"op", "status"},
	)
)

var regOnce sync.Once

// Register adds all collectors to Registry. Safe to call more than once.
func Register() {
	regOnce.Do(func() {
		Registry.MustRegister(
			RouteOptimizations,
			ProviderLatency,
			StateTransitions,
			ScheduleChanges,
			JobRuns,
			Notifications,
			OperationDuration,
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	})
}
