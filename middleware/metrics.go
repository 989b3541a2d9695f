package middleware

import (
	"strconv"
	"time"

	"github.com/blackscorpionster/rubits/metrics"
	"github.com/gin-gonic/gin"
)

// Metrics records request count, latency and in-flight requests by route
func Metrics(m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.URL.Path == "/metrics" {
			c.Next()
			return
		}

		done := m.InFlight()
		start := time.Now()
		c.Next()
		done()

		m.ObserveRequest(c.Request.Method, c.FullPath(), strconv.Itoa(c.Writer.Status()), time.Since(start))
	}
}
