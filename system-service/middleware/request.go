package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sirupsen/logrus"

	"backoffice-backend/shared/logger"
)

const requestIDHeader = "X-Request-ID"

var (
	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "backoffice",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests by route, method and status.",
	}, []string{"route", "method", "status"})

	httpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "backoffice",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency by route and method.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"route", "method"})
)

// RequestLogger assigns a request id, stores a request scoped logrus entry
// in the request context and logs one line per request.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		requestID := c.GetHeader(requestIDHeader)
		if requestID == "" {
			requestID = uuid.New().String()
		}
		c.Set(ContextRequestID, requestID)
		c.Header(requestIDHeader, requestID)

		entry := logrus.WithField("request_id", requestID)
		c.Request = c.Request.WithContext(logger.WithContext(c.Request.Context(), entry))

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		httpRequests.WithLabelValues(route, c.Request.Method, strconv.Itoa(status)).Inc()
		httpDuration.WithLabelValues(route, c.Request.Method).Observe(latency.Seconds())

		fields := logrus.Fields{
			"method":  c.Request.Method,
			"path":    c.Request.URL.Path,
			"status":  status,
			"latency": latency.String(),
			"ip":      c.ClientIP(),
		}
		if uid, ok := c.Get(ContextUserID); ok {
			fields["user_id"] = uid
		}
		switch {
		case status >= 500:
			entry.WithFields(fields).Error("request failed")
		case status >= 400:
			entry.WithFields(fields).Warn("request rejected")
		default:
			entry.WithFields(fields).Info("request completed")
		}
	}
}
