package middleware

import (
	"net/http"
	"slices"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// CORS 跨域中间件，origins 为空或包含 "*" 时允许所有来源
// 不在列表中的来源返回 403，预检请求返回 204
func CORS(origins ...string) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods: []string{
			http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions,
		},
		AllowHeaders:  []string{"Origin", "Authorization", "Content-Type", RequestIDHeader},
		ExposeHeaders: []string{RequestIDHeader, "Retry-After"},
		MaxAge:        24 * time.Hour,
	}
	if len(origins) == 0 || slices.Contains(origins, "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cors.New(cfg)
}
