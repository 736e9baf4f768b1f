package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"multichat/internal/pkg/metrics"
)

// Metrics 记录 Prometheus 请求计数和耗时，path 使用路由模板避免高基数
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		metrics.HTTPRequestsTotal.WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}
