package middleware

import (
	"github.com/gin-gonic/gin"

	"multichat/internal/pkg/id"
)

const (
	RequestIDKey    = "request_id"
	RequestIDHeader = "X-Request-ID"
)

// RequestID 为每个请求分配 ID，沿用客户端传入的 X-Request-ID
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.GetHeader(RequestIDHeader)
		if rid == "" || len(rid) > 64 {
			rid = id.New()
		}
		c.Set(RequestIDKey, rid)
		c.Header(RequestIDHeader, rid)
		c.Next()
	}
}
