package handler

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	sdarRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sdar_requests_total",
		Help: "Total HTTP requests by method, path, and response status.",
	}, []string{"method", "path", "status"})

	sdarRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "sdar_request_duration_seconds",
		Help:    "Request duration in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})

	sdarAuditsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sdar_audits_total",
		Help: "Total audit submissions by outcome.",
	}, []string{"outcome"})

	sdarVerificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sdar_verifications_total",
		Help: "Total digest verifications by outcome.",
	}, []string{"outcome"})

	sdarWebhookDeliveriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sdar_webhook_deliveries_total",
		Help: "Total webhook deliveries by success status.",
	}, []string{"status"})
)

// PrometheusMiddleware returns a gin middleware that records per-request metrics.
func PrometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())
		method := c.Request.Method
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		sdarRequestsTotal.WithLabelValues(method, path, status).Inc()
		sdarRequestDuration.WithLabelValues(method, path).Observe(duration)
	}
}

// MetricsHandler returns a gin handler that serves Prometheus metrics.
func MetricsHandler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

// RecordAudit records an audit submission outcome.
func RecordAudit(outcome string) {
	sdarAuditsTotal.WithLabelValues(outcome).Inc()
}

// RecordVerify records a verification outcome.
func RecordVerify(outcome string) {
	sdarVerificationsTotal.WithLabelValues(outcome).Inc()
}

// RecordWebhookDelivery records a webhook delivery attempt.
func RecordWebhookDelivery(success bool) {
	if success {
		sdarWebhookDeliveriesTotal.WithLabelValues("success").Inc()
	} else {
		sdarWebhookDeliveriesTotal.WithLabelValues("failure").Inc()
	}
}
