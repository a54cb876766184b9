// Package observability provides Prometheus metrics and HTTP middleware
// for monitoring the trailhub backend.
package observability

import "github.com/prometheus/client_golang/prometheus"

// APIBuckets defines histogram buckets suited for CRUD request latencies,
// plus a tail wide enough to cover bcrypt verification on the login path.
var APIBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5}

var (
	// RequestsTotal counts all HTTP requests by method and status class.
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trailhub_requests_total",
			Help: "Total requests",
		},
		[]string{"method", "status"},
	)

	// RequestDuration records HTTP request duration in seconds by method.
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "trailhub_request_duration_seconds",
			Help:    "Request duration",
			Buckets: APIBuckets,
		},
		[]string{"method"},
	)

	// AuthResolutionsTotal counts authentication gate outcomes: ok,
	// anonymous, invalid_token, unknown_subject, inactive.
	AuthResolutionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trailhub_auth_resolutions_total",
			Help: "Authentication gate outcomes",
		},
		[]string{"outcome"},
	)

	// AuthzDenialsTotal counts requests rejected by the policy engine,
	// by denial class (unauthenticated, forbidden, not_owner).
	AuthzDenialsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trailhub_authz_denials_total",
			Help: "Authorization policy denials",
		},
		[]string{"reason"},
	)

	// LoginAttemptsTotal counts login attempts by outcome: ok,
	// bad_credentials, disabled.
	LoginAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trailhub_login_attempts_total",
			Help: "Login attempts",
		},
		[]string{"outcome"},
	)
)

func init() {
	prometheus.MustRegister(
		RequestsTotal,
		RequestDuration,
		AuthResolutionsTotal,
		AuthzDenialsTotal,
		LoginAttemptsTotal,
	)
}
