// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	OrchestrationIterations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orchestration_iterations_total",
			Help: "Total number of orchestration loop iterations",
		},
		[]string{"tenant_id"},
	)

	OrchestrationSessions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orchestration_sessions_total",
			Help: "Total number of orchestration sessions by outcome",
		},
		[]string{"outcome"},
	)

	CapabilityExecutions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "capability_executions_total",
			Help: "Total number of capability executions by status",
		},
		[]string{"capability", "status"},
	)

	CapabilityDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "capability_execution_duration_seconds",
			Help: "Duration of capability executions in seconds",
		},
		[]string{"capability"},
	)

	EntityResolutions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "entity_resolutions_total",
			Help: "Total number of entity resolutions by status",
		},
		[]string{"status"},
	)
)
