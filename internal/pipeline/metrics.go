package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	jobsPrepared = promauto.NewCounter(prometheus.CounterOpts{
		Name: "qbatch_jobs_prepared_total",
		Help: "Jobs that completed Phase 1 preparation.",
	})
	prepFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "qbatch_preparation_failures_total",
		Help: "Jobs whose Phase 1 preparation failed terminally.",
	})
	jobsSucceeded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "qbatch_jobs_succeeded_total",
		Help: "Jobs that produced an energy value.",
	})
	jobsFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "qbatch_jobs_failed_total",
		Help: "Jobs that failed Phase 2 compute terminally.",
	})
	fallbacksUsed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "qbatch_degraded_fallbacks_total",
		Help: "Jobs rerun with the degraded basis after a result-shape error.",
	})
)
