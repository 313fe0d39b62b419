package monitoring

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

	// ProgressEvents 已处理的学习事件，result 为 ok 或错误码
	ProgressEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "progress_events_total",
			Help: "Learning events applied by the progress engine",
		},
		[]string{"type", "result"},
	)

	LevelChanges = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "progress_level_changes_total",
			Help: "CEFR tier changes",
		},
		[]string{"from", "to"},
	)

	StreakTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "progress_streak_transitions_total",
			Help: "Streak state transitions recorded on activity",
		},
		[]string{"kind"},
	)

	ReviewsScheduled = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "progress_review_interval_days",
			Help:    "Interval assigned to review cards after scheduling",
			Buckets: []float64{1, 3, 6, 15, 30, 60, 120, 365},
		},
	)

	registerOnce sync.Once
)

func Init() {
	registerOnce.Do(func() {
		prometheus.MustRegister(RequestCounter)
		prometheus.MustRegister(RequestDuration)
		prometheus.MustRegister(ProgressEvents)
		prometheus.MustRegister(LevelChanges)
		prometheus.MustRegister(StreakTransitions)
		prometheus.MustRegister(ReviewsScheduled)
	})
}

func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		duration := time.Since(start).Seconds()
		status := c.Writer.Status()

		RequestCounter.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			strconv.Itoa(status),
		).Inc()

		RequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
		).Observe(duration)
	}
}

func PrometheusHandler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
