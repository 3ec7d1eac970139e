// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// RecommendationOps counts recommendation operations by op and outcome
	// (ok, unauthenticated, forbidden, not_found, validation, error).
	RecommendationOps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hypeshelf",
			Name:      "recommendation_operations_total",
			Help:      "Recommendation operations by operation and outcome.",
		},
		[]string{"op", "outcome"},
	)

	// IdentityEvents counts identity lifecycle events by type and outcome
	// (applied, ignored, duplicate, rejected, error).
	IdentityEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hypeshelf",
			Name:      "identity_events_total",
			Help:      "Identity provider webhook events by type and outcome.",
		},
		[]string{"type", "outcome"},
	)

	// RateLimitAllowed and RateLimitRejected are labelled by limiter backend
	// (memory, redis).
	RateLimitAllowed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hypeshelf",
			Name:      "rate_limit_allowed_total",
			Help:      "Requests admitted by the rate limiter.",
		},
		[]string{"backend"},
	)

	RateLimitRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hypeshelf",
			Name:      "rate_limit_rejected_total",
			Help:      "Requests rejected by the rate limiter.",
		},
		[]string{"backend"},
	)
)

// RegisterCollectors registers every collector with reg. Call once at
// startup.
func RegisterCollectors(reg prometheus.Registerer) {
	reg.MustRegister(RecommendationOps, IdentityEvents, RateLimitAllowed, RateLimitRejected)
}
