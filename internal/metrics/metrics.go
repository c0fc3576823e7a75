package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// JobsEnqueued tracks accepted enqueue requests per kind and rail
	JobsEnqueued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "claims_jobs_enqueued_total",
			Help: "Total number of jobs enqueued",
		},
		[]string{"kind", "rail"},
	)

	// JobAttempts tracks processing attempts per kind and rail
	JobAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "claims_job_attempts_total",
			Help: "Total number of job processing attempts",
		},
		[]string{"kind", "rail"},
	)

	// JobRetries tracks scheduled retries per rail and error kind
	JobRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "claims_job_retries_total",
			Help: "Total number of job retries scheduled",
		},
		[]string{"rail", "error_kind"},
	)

	// JobsFinished tracks terminal outcomes
	JobsFinished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "claims_jobs_finished_total",
			Help: "Total number of jobs reaching a terminal status",
		},
		[]string{"kind", "rail", "status"},
	)

	// ConnectorLatency tracks rail connector call latency
	ConnectorLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "claims_connector_latency_seconds",
			Help:    "Rail connector call latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"kind", "rail"},
	)

	// GateDecisions tracks Safety Gate outcomes
	GateDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "claims_gate_decisions_total",
			Help: "Total number of outbound call decisions made by the network safety gate",
		},
		[]string{"allowed"},
	)

	// JobsPurged tracks jobs removed by the retention sweep
	JobsPurged = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "claims_jobs_purged_total",
			Help: "Total number of terminal jobs removed by retention cleanup",
		},
	)
)
