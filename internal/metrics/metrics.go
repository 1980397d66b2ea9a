// Package metrics holds the Prometheus collectors for workflow and
// integration events. HTTP collectors live in the middleware package.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ChangeTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "casei_change_transitions_total",
			Help: "Change request transitions by approval action",
		},
		[]string{"action", "content_type"},
	)

	ChangeConflicts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "casei_change_transition_conflicts_total",
			Help: "Transitions that lost a concurrent status update",
		},
	)

	PublishedCache = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "casei_published_cache_requests_total",
			Help: "Published listing cache lookups",
		},
		[]string{"result"},
	)

	GcmdSyncChanges = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "casei_gcmd_sync_changes_total",
			Help: "Changes created by GCMD keyword syncs",
		},
		[]string{"scheme", "action"},
	)

	ExternalRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "casei_external_request_duration_seconds",
			Help:    "Duration of requests to KMS, CMR and GitHub",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"service", "status"},
	)

	DeployTriggers = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "casei_deploy_triggers_total",
			Help: "Static site deploy workflow dispatches",
		},
		[]string{"result"},
	)
)
