package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/imyashkale/deployinsights/internal/metrics"
)

// Prometheus records request count and latency by route template
func Prometheus() gin.HandlerFunc {
	return func(c *gin.Context) {
		now := time.Now()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		code := strconv.Itoa(c.Writer.Status())
		elapsedSeconds := time.Since(now).Seconds()

		metrics.TotalRequests.WithLabelValues(path, code, c.Request.Method).Inc()
		metrics.HttpDuration.WithLabelValues(path, code, c.Request.Method).Observe(elapsedSeconds)
	}
}
