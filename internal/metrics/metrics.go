// Package metrics exposes the Prometheus instruments of the service
package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Subscription lifecycle
	SubscriptionsCreatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "a2s_subscriptions_created_total",
			Help: "Total number of subscriptions created with an installation or on demand",
		},
	)

	SubscriptionsRenewedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "a2s_subscriptions_renewed_total",
			Help: "Total number of subscription renewals by trigger",
		},
		[]string{"trigger"}, // manual, payment
	)

	ReconcileChangesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "a2s_reconcile_changes_total",
			Help: "Subscription status changes persisted by the reconcile step, by new status",
		},
		[]string{"status"},
	)

	ReconcileRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "a2s_reconcile_runs_total",
			Help: "Reconcile runs by outcome",
		},
		[]string{"outcome"},
	)

	SubscriptionsByStatus = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "a2s_subscriptions",
			Help: "Subscriptions by derived status at the last reconcile",
		},
		[]string{"status"},
	)

	// Payments
	PaymentsRecordedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "a2s_payments_recorded_total",
			Help: "Total number of payments recorded by type and mode",
		},
		[]string{"type", "mode"},
	)

	// Insights
	InsightRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "a2s_insight_requests_total",
			Help: "AI insight requests by provider and outcome",
		},
		[]string{"provider", "outcome"}, // ok, fallback
	)

	// HTTP
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "a2s_http_request_duration_seconds",
			Help:    "HTTP request latency by route and status",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)
)

// GinMiddleware records request latency per route
func GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		HTTPRequestDuration.
			WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).
			Observe(time.Since(start).Seconds())
	}
}

// Handler serves the default registry
func Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}
