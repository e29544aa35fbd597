package monitoring

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// slowRequest is the duration above which requests are logged as slow
const slowRequest = 5 * time.Second

// RequestIDHeader carries the per-request correlation id
const RequestIDHeader = "X-Request-ID"

// RequestID assigns every request an id, reusing a caller-supplied one
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}

// MonitoringMiddleware creates Gin middleware for request monitoring
func MonitoringMiddleware(metrics *Metrics, logger *Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		metrics.IncrementRequest()

		ip := c.ClientIP()
		method := c.Request.Method
		path := c.Request.URL.Path

		c.Next()

		duration := time.Since(start)
		statusCode := c.Writer.Status()

		metrics.RecordResponseTime(duration)
		metrics.RecordRequestByStatus(statusCode)
		if statusCode >= http.StatusBadRequest {
			metrics.IncrementError()
		}

		logger.RequestLogger(method, path, ip, c.GetString("request_id"), statusCode, duration)

		for _, err := range c.Errors {
			logger.APIErrorLogger(err.Err, method, path, ip, statusCode)
		}

		if duration > slowRequest {
			logger.SlowRequestLogger(method, path, duration)
		}
	}
}

// StatsSource reports one named section of the metrics document
type StatsSource interface {
	GetStats() map[string]interface{}
}

// MetricsHandler serves the current counters as JSON, with one extra
// section per entry in sources
func MetricsHandler(metrics *Metrics, sources map[string]StatsSource) gin.HandlerFunc {
	return func(c *gin.Context) {
		stats := metrics.GetStats()
		for name, src := range sources {
			stats[name] = src.GetStats()
		}
		c.JSON(http.StatusOK, stats)
	}
}
