package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"lms/internal/infrastructure/metrics"
)

// Metrics records request latency by route template. m may be nil.
func Metrics(m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.ObserveHTTP(route, c.Request.Method, c.Writer.Status(), time.Since(start))
	}
}
