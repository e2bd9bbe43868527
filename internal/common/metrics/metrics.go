// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SubmissionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "genflow_submissions_total",
			Help: "Total number of generation submissions by outcome",
		},
		[]string{"engine", "outcome"},
	)

	SubmissionRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "genflow_submission_retries_total",
			Help: "Total number of transient submission retries",
		},
		[]string{"engine"},
	)

	QuotaRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "genflow_quota_rejections_total",
			Help: "Total number of admission rejections by reason",
		},
		[]string{"reason"},
	)

	PollTicks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "genflow_poll_ticks_total",
			Help: "Total number of poll ticks by outcome",
		},
		[]string{"outcome"},
	)

	PollTickDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "genflow_poll_tick_duration_seconds",
			Help: "Duration of a full poll tick in seconds",
		},
		[]string{"outcome"},
	)

	TrackedWorkflows = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "genflow_tracked_workflows",
			Help: "Number of locally tracked workflows by status",
		},
		[]string{"status"},
	)

	CancelRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "genflow_cancel_requests_total",
			Help: "Total number of workflow cancel requests by outcome",
		},
		[]string{"outcome"},
	)
)
