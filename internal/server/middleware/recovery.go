package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	httputil "multichat/internal/pkg/http"
)

// Recovery 捕获 handler 中的 panic，返回 50000
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			err, ok := rec.(error)
			if !ok {
				err = fmt.Errorf("%v", rec)
			}
			log.Error().
				Err(err).
				Str("request_id", c.GetString(RequestIDKey)).
				Str("method", c.Request.Method).
				Str("path", c.Request.URL.Path).
				Bytes("stack", debug.Stack()).
				Msg("panic recovered")

			if c.Writer.Written() {
				c.Abort()
				return
			}
			c.AbortWithStatusJSON(http.StatusInternalServerError, httputil.NewErrorResponse(httputil.CodePanic, "Internal Server Error"))
		}()
		c.Next()
	}
}
