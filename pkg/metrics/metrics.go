package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// LoginAttempts records login attempts by realm (admin|tenant) and result (success|failure).
	LoginAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sitebridge_login_attempts_total",
			Help: "Total number of login attempts",
		},
		[]string{"realm", "result"},
	)

	// SessionValidations counts bearer-token validations and their outcome
	// (ok|refreshed|expired|invalid).
	SessionValidations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sitebridge_session_validations_total",
			Help: "Total number of session validations",
		},
		[]string{"result"},
	)

	// ActiveSessions tracks sessions that have been issued and not yet expired or revoked.
	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sitebridge_active_sessions",
			Help: "Number of active sessions",
		},
	)

	// FeatureChecks counts feature gate evaluations by feature key and verdict (allow|deny).
	FeatureChecks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sitebridge_feature_checks_total",
			Help: "Total number of feature gate checks",
		},
		[]string{"feature", "result"},
	)

	// RemoteCalls counts calls made to the remote ERP system by operation and result.
	RemoteCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sitebridge_remote_calls_total",
			Help: "Total number of remote ERP calls",
		},
		[]string{"operation", "result"},
	)

	// APILatency measures HTTP request latencies.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sitebridge_api_latency_seconds",
			Help:    "API endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
