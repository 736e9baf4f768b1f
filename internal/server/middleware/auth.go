package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"multichat/internal/model"
	"multichat/internal/pkg/ctxutil"
	httputil "multichat/internal/pkg/http"
	"multichat/internal/pkg/jwt"
)

// Auth JWT 认证中间件
// 从 Authorization header 中提取 Bearer token，验证后注入 user_id 到 context。
// jwtUtil 为 nil 时不做认证，所有请求按匿名用户处理；required 为 false 时没有 token 的请求也按匿名处理。
func Auth(jwtUtil *jwt.JWT, required bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := model.AnonymousUserID

		if jwtUtil != nil {
			authHeader := c.GetHeader("Authorization")
			switch {
			case authHeader == "" && !required:
			case authHeader == "":
				c.AbortWithStatusJSON(http.StatusUnauthorized, httputil.NewErrorResponse(httputil.CodeUnauthorized, "Unauthorized"))
				return
			default:
				// 提取 Token（Bearer {token}）
				parts := strings.SplitN(authHeader, " ", 2)
				if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
					c.AbortWithStatusJSON(http.StatusUnauthorized, httputil.NewErrorResponse(httputil.CodeUnauthorized, "Invalid authorization header"))
					return
				}
				claims, err := jwtUtil.ValidateToken(strings.TrimSpace(parts[1]))
				if err != nil {
					message := "Invalid token"
					if errors.Is(err, jwt.ErrExpiredToken) {
						message = "Token expired"
					}
					c.AbortWithStatusJSON(http.StatusUnauthorized, httputil.NewErrorResponse(httputil.CodeInvalidToken, message))
					return
				}
				userID = claims.UserID
			}
		}

		// 将 user_id 注入到 context
		ctx := ctxutil.WithUserID(c.Request.Context(), userID)
		c.Request = c.Request.WithContext(ctx)
		c.Set("user_id", userID)

		c.Next()
	}
}
