// Package metrics exposes the Prometheus series of the dashboard API.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "laala_http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "route", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "laala_http_request_duration_seconds",
		Help:    "Duration of HTTP requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "status"})

	authorizationDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "laala_authorization_decisions_total",
		Help: "Permission gate outcomes by caller kind, resource and result",
	}, []string{"kind", "resource", "result"})

	accountRequestTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "laala_account_request_transitions_total",
		Help: "Account request submissions and state transitions",
	}, []string{"transition"})

	outboxDeliveries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "laala_outbox_deliveries_total",
		Help: "Email outbox delivery attempts by result",
	}, []string{"result"})

	outboxBatchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "laala_outbox_batch_duration_seconds",
		Help:    "Duration of one outbox dispatch pass",
		Buckets: prometheus.DefBuckets,
	})

	rateLimitRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "laala_rate_limit_rejections_total",
		Help: "Requests rejected by a rate limiter",
	}, []string{"scope"})

	retentionPurged = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "laala_retention_purged_total",
		Help: "Rows removed by the retention janitor",
	}, []string{"target"})
)

// ObserveHTTPRequest records an HTTP request metric
func ObserveHTTPRequest(method, route, status string, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, route, status).Inc()
	httpRequestDuration.WithLabelValues(method, route, status).Observe(duration.Seconds())
}

// ObserveAuthorization records a permission gate decision. result is
// "allowed" or the denial status code.
func ObserveAuthorization(kind, resource, result string) {
	authorizationDecisions.WithLabelValues(kind, resource, result).Inc()
}

// ObserveAccountRequest counts submit/approve/reject/first_login events.
func ObserveAccountRequest(transition string) {
	accountRequestTransitions.WithLabelValues(transition).Inc()
}

// ObserveOutboxDelivery counts one delivery attempt.
func ObserveOutboxDelivery(result string) {
	outboxDeliveries.WithLabelValues(result).Inc()
}

// ObserveOutboxBatch records the duration of a dispatch pass.
func ObserveOutboxBatch(duration time.Duration) {
	outboxBatchDuration.Observe(duration.Seconds())
}

// ObserveRateLimited counts a rejected request for scope ("actor" or "public").
func ObserveRateLimited(scope string) {
	rateLimitRejections.WithLabelValues(scope).Inc()
}

// ObservePurge adds count purged rows for target.
func ObservePurge(target string, count int64) {
	if count > 0 {
		retentionPurged.WithLabelValues(target).Add(float64(count))
	}
}
