package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "http_requests_in_flight",
		Help: "Number of HTTP requests currently being served.",
	})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "endpoint", "status"})

	HTTPRequestTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests.",
	}, []string{"method", "endpoint", "status"})

	WorkspaceRequestTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "workspace_requests_total",
		Help: "Total number of requests made to the workspace APIs. Status 0 means no response was received.",
	}, []string{"method", "endpoint", "status"})

	WorkspaceRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "workspace_request_duration_seconds",
		Help:    "Duration of requests made to the workspace APIs.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "endpoint"})

	JobsCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "training_jobs_created_total",
		Help: "Total number of remote training jobs created.",
	})

	OrphanedJobsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "training_jobs_orphaned_total",
		Help: "Remote jobs created by a request that lost the race to store its job id.",
	})

	TrainingRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "training_runs_total",
		Help: "Training runs requested, by outcome.",
	}, []string{"outcome"})
)

// ObserveWorkspaceRequest records one remote call. It matches the workspace
// transport observer signature.
func ObserveWorkspaceRequest(method string, endpoint string, statusCode int, elapsed time.Duration) {
	WorkspaceRequestTotal.WithLabelValues(method, endpoint, strconv.Itoa(statusCode)).Inc()
	WorkspaceRequestDuration.WithLabelValues(method, endpoint).Observe(elapsed.Seconds())
}
