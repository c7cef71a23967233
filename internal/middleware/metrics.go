package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for the request pipeline.
var (
	requestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_requests_total",
			Help: "Total number of requests processed by the pipeline",
		},
		[]string{"method", "path", "status"},
	)

	requestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pipeline_request_duration_seconds",
			Help:    "Request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	rateLimitRejections = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pipeline_rate_limit_rejections_total",
			Help: "Total number of requests rejected by the rate limiter",
		},
	)

	authDenials = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_auth_denials_total",
			Help: "Total number of requests denied by the auth gate",
		},
		[]string{"reason"},
	)

	validationFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pipeline_validation_failures_total",
			Help: "Total number of requests rejected by schema validation",
		},
	)

	panicsRecovered = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pipeline_panics_recovered_total",
			Help: "Total number of panics recovered by the pipeline",
		},
	)
)

// Metrics returns a middleware that records request totals and latency.
// The path label uses the registered route pattern, not the raw URL, to
// keep cardinality bounded.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}

		requestsTotal.WithLabelValues(
			c.Request.Method,
			path,
			strconv.Itoa(c.Writer.Status()),
		).Inc()
		requestDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}
