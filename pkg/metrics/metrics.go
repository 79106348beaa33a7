package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kabataan_http_requests_total",
		Help: "HTTP requests by route pattern, method and status",
	}, []string{"route", "method", "status"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "kabataan_http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"route", "method"})

	CodesIssuedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kabataan_auth_codes_issued_total",
		Help: "Verification codes generated, by purpose and whether delivery succeeded",
	}, []string{"purpose", "delivered"})

	CodeVerificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kabataan_auth_code_verifications_total",
		Help: "Code verification attempts by purpose and outcome",
	}, []string{"purpose", "outcome"})

	LoginsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kabataan_auth_logins_total",
		Help: "Login attempts by account class and resulting state",
	}, []string{"class", "state"})

	EventsConsumedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kabataan_auth_events_consumed_total",
		Help: "Auth events read off the bus by the notify service",
	}, []string{"subject", "status"})
)

// Verification outcomes.
const (
	OutcomeValid    = "valid"
	OutcomeNotFound = "not_found"
	OutcomeMismatch = "mismatch"
	OutcomeExpired  = "expired"
	OutcomeLost     = "lost_race"
)
