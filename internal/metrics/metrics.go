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
	// AssistantRequests counts composer turns by intent and outcome.
	AssistantRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "manas_assistant_requests_total",
		Help: "Assistant turns processed, by intent and status",
	}, []string{"intent", "status"})

	// AssistantLatency measures a full composer turn.
	AssistantLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "manas_assistant_latency_seconds",
		Help:    "Latency of a full assistant turn",
		Buckets: prometheus.DefBuckets,
	})

	// SynthesisFailures counts swallowed speech synthesis errors.
	SynthesisFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "manas_synthesis_failures_total",
		Help: "Speech synthesis attempts that failed and were skipped",
	})

	// RemindersSent counts task reminders pushed by the scheduler.
	RemindersSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "manas_task_reminders_total",
		Help: "Task reminders pushed to connected clients",
	})

	// ActiveVoiceSessions tracks open websocket voice sessions.
	ActiveVoiceSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "manas_voice_sessions_active",
		Help: "Open websocket voice sessions",
	})

	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "manas_http_requests_total",
		Help: "HTTP requests by route, method and status code",
	}, []string{"route", "method", "code"})

	httpLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "manas_http_request_duration_seconds",
		Help:    "HTTP request latency by route",
		Buckets: prometheus.DefBuckets,
	}, []string{"route", "method"})
)

// ObserveTurn records the outcome of one assistant turn.
func ObserveTurn(intent string, success bool, elapsed time.Duration) {
	status := "success"
	if !success {
		status = "error"
	}
	AssistantRequests.WithLabelValues(intent, status).Inc()
	AssistantLatency.Observe(elapsed.Seconds())
}

// Middleware records request counts and latency by matched route.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		httpRequests.WithLabelValues(route, c.Request.Method, strconv.Itoa(c.Writer.Status())).Inc()
		httpLatency.WithLabelValues(route, c.Request.Method).Observe(time.Since(start).Seconds())
	}
}

// Handler serves the Prometheus scrape endpoint.
func Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}
