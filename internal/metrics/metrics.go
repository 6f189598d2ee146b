// Package metrics holds the Prometheus collectors exposed on /metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/neexbeast/geoplaces/internal/apperr"
)

var (
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "geoplaces_db_query_duration_seconds",
			Help:    "Duration of PostGIS queries in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	DBQueryErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "geoplaces_db_query_errors_total",
			Help: "Total number of failed PostGIS queries by error kind",
		},
		[]string{"operation", "kind"},
	)

	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "geoplaces_api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "route", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "geoplaces_api_request_duration_seconds",
			Help:    "Duration of API requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	RatingsRecorded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "geoplaces_ratings_recorded_total",
			Help: "Total number of reviews and ratings committed",
		},
	)

	LoginFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "geoplaces_login_failures_total",
			Help: "Total number of rejected logins",
		},
		[]string{"reason"}, // "credentials", "locked"
	)
)

// RecordDBQuery records one repository operation. Errors are labelled by
// apperr kind to keep cardinality bounded.
func RecordDBQuery(operation string, duration time.Duration, err error) {
	DBQueryDuration.WithLabelValues(operation).Observe(duration.Seconds())
	if err != nil {
		DBQueryErrors.WithLabelValues(operation, string(apperr.KindOf(err))).Inc()
	}
}

// RecordAPIRequest records a served request.
func RecordAPIRequest(method, route, status string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, route, status).Inc()
	APIRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordLoginFailure counts a rejected login.
func RecordLoginFailure(err error) {
	reason := "credentials"
	if apperr.Is(err, apperr.KindRateLimited) {
		reason = "locked"
	}
	LoginFailures.WithLabelValues(reason).Inc()
}
