// Package metrics exposes Prometheus collectors for the HTTP layer and
// the request workflow.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "benefits_http_requests_total",
		Help: "HTTP requests by method, route and status code.",
	}, []string{"method", "route", "code"})

	HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "benefits_http_request_duration_seconds",
		Help:    "HTTP request latency by method and route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	RequestsSubmittedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "benefits_requests_submitted_total",
		Help: "Benefit requests by outcome: recorded or auto_approved.",
	}, []string{"outcome"})

	RequestTransitionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "benefits_request_transitions_total",
		Help: "Request status transitions by target status.",
	}, []string{"status"})

	PollSubmissionsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "benefits_poll_submissions_total",
		Help: "Accepted satisfaction poll submissions.",
	})

	NotificationFailuresTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "benefits_notification_failures_total",
		Help: "Notification events that could not be published, by kind.",
	}, []string{"kind"})

	RateLimitedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "benefits_rate_limited_total",
		Help: "Requests rejected by the rate limiter.",
	})
)

var once sync.Once

// InitMetrics registers every collector with the default registry.  It is
// safe to call more than once.
func InitMetrics() {
	once.Do(func() {
		prometheus.MustRegister(
			HTTPRequestsTotal,
			HTTPRequestDuration,
			RequestsSubmittedTotal,
			RequestTransitionsTotal,
			PollSubmissionsTotal,
			NotificationFailuresTotal,
			RateLimitedTotal,
		)
	})
}
