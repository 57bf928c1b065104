// Package metrics exposes Prometheus collectors for the HTTP layer and the
// session API.
package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5},
		},
		[]string{"method", "endpoint"},
	)

	SessionOperations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "examdrill_session_operations_total",
			Help: "Session API operations by action and outcome",
		},
		[]string{"action", "outcome"},
	)

	SessionIDCollisions = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "examdrill_session_id_collisions_total",
			Help: "Generated session ids that were already taken",
		},
	)

	Verifications = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "examdrill_turnstile_verifications_total",
			Help: "Bot verification attempts by outcome",
		},
		[]string{"outcome"},
	)

	ActivityFlushed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "examdrill_activity_flushed_total",
			Help: "Session activity marks persisted by the worker",
		},
	)
)

var initOnce sync.Once

// Init registers all collectors with the default registry. Safe to call more than once.
func Init() {
	initOnce.Do(func() {
		prometheus.MustRegister(
			RequestCounter,
			RequestDuration,
			SessionOperations,
			SessionIDCollisions,
			Verifications,
			ActivityFlushed,
		)
	})
}

// Middleware records request counts and latencies per route.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unmatched"
		}

		RequestCounter.WithLabelValues(
			c.Request.Method,
			endpoint,
			strconv.Itoa(c.Writer.Status()),
		).Inc()

		RequestDuration.WithLabelValues(
			c.Request.Method,
			endpoint,
		).Observe(time.Since(start).Seconds())
	}
}

// Handler serves the default registry.
func Handler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
