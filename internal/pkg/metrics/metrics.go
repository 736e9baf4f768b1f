package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "multichat_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "multichat_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.005, .01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"method", "path"},
	)

	// Business metrics
	MessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "multichat_messages_total",
			Help: "Total chat messages stored",
		},
		[]string{"role"},
	)

	LLMRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "multichat_llm_requests_total",
			Help: "Total LLM requests",
		},
		[]string{"model", "kind", "outcome"},
	)

	LLMRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "multichat_llm_request_duration_seconds",
			Help:    "LLM request duration",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"model", "kind"},
	)

	DocumentsUploaded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "multichat_documents_uploaded_total",
			Help: "Total documents uploaded",
		},
	)

	// Rate limit metrics
	RateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "multichat_rate_limit_hits_total",
			Help: "Total rate limit hits",
		},
		[]string{"endpoint"},
	)
)

// ObserveLLMRequest 记录一次模型调用
func ObserveLLMRequest(model, kind string, d time.Duration, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	LLMRequestsTotal.WithLabelValues(model, kind, outcome).Inc()
	LLMRequestDuration.WithLabelValues(model, kind).Observe(d.Seconds())
}
