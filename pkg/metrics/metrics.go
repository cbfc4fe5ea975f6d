package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AuthzDecisions counts authorization decisions grouped by module and reason code.
	AuthzDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "erpauth_authz_decisions_total",
			Help: "Total number of authorization decisions",
		},
		[]string{"module", "reason"},
	)

	// SeedRuns counts bootstrap seeding runs by result (success|failure).
	SeedRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "erpauth_seed_runs_total",
			Help: "Total number of bootstrap seed invocations",
		},
		[]string{"result"},
	)

	// DecisionCacheLookups counts decision cache lookups by outcome (hit|miss|bypass).
	DecisionCacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "erpauth_decision_cache_lookups_total",
			Help: "Decision cache lookups by outcome",
		},
		[]string{"outcome"},
	)

	// APILatency measures HTTP request latencies.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "erpauth_api_latency_seconds",
			Help:    "API endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
