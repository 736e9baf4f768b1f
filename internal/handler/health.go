package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Pinger 依赖的连通性检查
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler 健康检查处理器
type HealthHandler struct {
	deps map[string]Pinger
}

// NewHealthHandler 创建健康检查处理器；deps 中的 nil 值会被忽略
func NewHealthHandler(deps map[string]Pinger) *HealthHandler {
	h := &HealthHandler{deps: make(map[string]Pinger, len(deps))}
	for name, p := range deps {
		if p != nil {
			h.deps[name] = p
		}
	}
	return h
}

// Health 健康检查
// @Summary  存活检查
// @Tags     系统
// @Produce  json
// @Success  200  {object}  map[string]string
// @Router   /health [get]
// @Router   /api/health [get]
func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}

// Ready 就绪检查，逐个 ping 依赖
// @Summary  就绪检查
// @Tags     系统
// @Produce  json
// @Success  200  {object}  map[string]interface{}
// @Failure  503  {object}  map[string]interface{}
// @Router   /ready [get]
func (h *HealthHandler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	checks := make(map[string]string, len(h.deps))
	ready := true
	for name, p := range h.deps {
		if err := p.Ping(ctx); err != nil {
			checks[name] = err.Error()
			ready = false
			continue
		}
		checks[name] = "ok"
	}

	if !ready {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "checks": checks})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready", "checks": checks})
}
