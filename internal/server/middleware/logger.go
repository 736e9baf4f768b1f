package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"multichat/internal/pkg/ctxutil"
)

// 探活和抓取指标的请求只在 debug 级别记录
var quietPaths = map[string]bool{
	"/health":  true,
	"/ready":   true,
	"/metrics": true,
}

// Logger 访问日志
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		level := zerolog.InfoLevel
		switch {
		case status >= 500:
			level = zerolog.ErrorLevel
		case status >= 400:
			level = zerolog.WarnLevel
		case quietPaths[c.Request.URL.Path]:
			level = zerolog.DebugLevel
		}

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		event := log.WithLevel(level).
			Str("request_id", c.GetString(RequestIDKey)).
			Str("method", c.Request.Method).
			Str("route", route).
			Str("path", c.Request.URL.Path).
			Int("status", status).
			Dur("latency", time.Since(start)).
			Str("client_ip", c.ClientIP()).
			Int("body_size", c.Writer.Size())
		if uid, ok := ctxutil.GetUserID(c.Request.Context()); ok {
			event = event.Str("user_id", uid)
		}
		if len(c.Errors) > 0 {
			event = event.Str("errors", c.Errors.String())
		}
		event.Msg("HTTP request")
	}
}
