// README: Request latency metrics keyed by the matched route template.
package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"dropspot/internal/metrics"
)

func Metrics(rec metrics.Recorder) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		rec.HTTPRequest(c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}
