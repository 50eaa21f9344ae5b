// Package metrics exposes Prometheus collectors for HTTP traffic and the
// attempt lifecycle.
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

	AttemptsStarted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "assessment_attempts_started_total",
		Help: "Attempts created",
	})

	AttemptsSubmitted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assessment_attempts_submitted_total",
			Help: "Attempts frozen for scoring, by trigger",
		},
		[]string{"trigger"},
	)

	AttemptsFinalized = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assessment_attempts_finalized_total",
			Help: "Scoring passes by resulting status and verdict",
		},
		[]string{"status", "passed"},
	)

	AttemptsAbandoned = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "assessment_attempts_abandoned_total",
		Help: "Untimed attempts expired after the idle grace window",
	})

	AnswersRecorded = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "assessment_answers_recorded_total",
		Help: "Answer writes accepted",
	})

	ManualGrades = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "assessment_manual_grades_total",
		Help: "Instructor grades applied",
	})

	AwardsPublished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assessment_point_awards_published_total",
			Help: "Point award publications by outcome",
		},
		[]string{"result"},
	)

	QueueDepth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "assessment_worker_queue_depth",
			Help: "Items waiting in Redis worker queues, sampled by /health",
		},
		[]string{"queue"},
	)
)

var once sync.Once

// Init registers every collector with the default registry. Safe to call twice.
func Init() {
	once.Do(func() {
		prometheus.MustRegister(
			RequestCounter,
			RequestDuration,
			AttemptsStarted,
			AttemptsSubmitted,
			AttemptsFinalized,
			AttemptsAbandoned,
			AnswersRecorded,
			ManualGrades,
			AwardsPublished,
			QueueDepth,
		)
	})
}

// Middleware records request counts and latency per route template.
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

// Handler serves the Prometheus exposition format.
func Handler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
