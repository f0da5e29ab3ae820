package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/DwayneJengSage/Bridge-Reporter/internal/service"
)

// Metrics records ops endpoint latency. Unmatched routes are grouped under one label.
func Metrics(metricsSvc *service.MetricsService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if metricsSvc == nil {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		metricsSvc.ObserveHTTPRequest(c.Request.Method, path, c.Writer.Status(), time.Since(start))
	}
}
