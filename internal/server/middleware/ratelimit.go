package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"multichat/internal/model"
	httputil "multichat/internal/pkg/http"
	"multichat/internal/pkg/metrics"
)

const limiterIdleTTL = 10 * time.Minute

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter 按客户端（已认证用户或 IP）限流
type RateLimiter struct {
	mu        sync.Mutex
	rps       rate.Limit
	burst     int
	clients   map[string]*clientLimiter
	lastSweep time.Time
	now       func() time.Time
}

// NewRateLimiter 创建限流器；burst <= 0 时取 rps 向上取整
func NewRateLimiter(rps float64, burst int) *RateLimiter {
	if burst <= 0 {
		burst = max(1, int(rps+0.999))
	}
	return &RateLimiter{
		rps:     rate.Limit(rps),
		burst:   burst,
		clients: make(map[string]*clientLimiter),
		now:     time.Now,
	}
}

// Allow 判断 key 对应的客户端能否继续请求
func (l *RateLimiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.lastSweep) > limiterIdleTTL {
		for k, cl := range l.clients {
			if now.Sub(cl.lastSeen) > limiterIdleTTL {
				delete(l.clients, k)
			}
		}
		l.lastSweep = now
	}

	cl, ok := l.clients[key]
	if !ok {
		cl = &clientLimiter{limiter: rate.NewLimiter(l.rps, l.burst)}
		l.clients[key] = cl
	}
	cl.lastSeen = now
	return cl.limiter.AllowN(now, 1)
}

// Middleware 超出速率时返回 429
func (l *RateLimiter) Middleware(endpoint string) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.ClientIP()
		if uid := c.GetString("user_id"); uid != "" && uid != model.AnonymousUserID {
			key = "user:" + uid
		}
		if !l.Allow(key) {
			metrics.RateLimitHits.WithLabelValues(endpoint).Inc()
			log.Warn().Str("client", key).Str("endpoint", endpoint).Msg("rate limit exceeded")
			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, httputil.NewErrorResponse(httputil.CodeRateLimited, "Too many requests"))
			return
		}
		c.Next()
	}
}
