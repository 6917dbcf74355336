// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SubscriptionSyncs = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "subscription_syncs_total",
			Help: "Total number of subscription sync attempts by outcome",
		},
		[]string{"outcome"}, // fresh_hit, synced, stale_fallback, error
	)

	SyncDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name: "subscription_sync_duration_seconds",
			Help: "Duration of subscription sync calls in seconds",
		},
	)

	AdapterCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "billing_adapter_calls_total",
			Help: "Total calls to the billing provider adapter",
		},
		[]string{"operation", "status"},
	)

	Exchanges = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "entitlement_exchanges_total",
			Help: "Total entitlement exchange attempts by result",
		},
		[]string{"result"}, // completed, partial_success, insufficient_balance, grant_failed
	)

	MirrorDivergences = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mirror_divergences_total",
			Help: "Mirror notifications that disagreed with the local tier",
		},
	)

	MirrorWriteFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mirror_write_failures_total",
			Help: "Best-effort mirror writes that failed",
		},
	)

	WorkerJobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_completed_total",
			Help: "Total number of jobs completed by worker",
		},
		[]string{"task_type"},
	)

	WorkerJobsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_failed_total",
			Help: "Total number of jobs failed by worker",
		},
		[]string{"task_type", "error_code"},
	)

	WorkerJobsActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "worker_jobs_active",
			Help: "Number of jobs currently being processed by worker",
		},
		[]string{"task_type"},
	)

	WorkerJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "worker_job_duration_seconds",
			Help: "Duration of job processing in seconds",
		},
		[]string{"task_type"},
	)
)
