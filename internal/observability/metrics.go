package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// MetricsCollector holds all Prometheus metrics for Zunguka.
// Uses a custom registry — no global state.
type MetricsCollector struct {
	Registry *prometheus.Registry

	// LLM metrics.
	LLMRequestsTotal   *prometheus.CounterVec
	LLMRequestDuration *prometheus.HistogramVec
	LLMTokensUsed      *prometheus.CounterVec

	// Key pool metrics.
	KeyPoolSize           *prometheus.GaugeVec
	RateLimitRetriesTotal *prometheus.CounterVec

	// Chat metrics.
	ChatTurnsTotal *prometheus.CounterVec
}

// NewMetricsCollector creates a MetricsCollector with all metrics registered
// on a custom prometheus.Registry.
func NewMetricsCollector() *MetricsCollector {
	reg := prometheus.NewRegistry()

	m := &MetricsCollector{
		Registry: reg,

		LLMRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "zunguka",
			Subsystem: "llm",
			Name:      "requests_total",
			Help:      "Total LLM API requests.",
		}, []string{"provider", "status"}),

		LLMRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "zunguka",
			Subsystem: "llm",
			Name:      "request_duration_seconds",
			Help:      "LLM API request duration in seconds.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		}, []string{"provider"}),

		LLMTokensUsed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "zunguka",
			Subsystem: "llm",
			Name:      "tokens_used_total",
			Help:      "Total LLM tokens consumed.",
		}, []string{"provider", "direction"}),

		KeyPoolSize: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "zunguka",
			Subsystem: "keypool",
			Name:      "size",
			Help:      "Number of API keys configured per provider.",
		}, []string{"provider"}),

		RateLimitRetriesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "zunguka",
			Subsystem: "keypool",
			Name:      "rate_limit_retries_total",
			Help:      "Total retries triggered by rate-limited responses.",
		}, []string{"provider"}),

		ChatTurnsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "zunguka",
			Subsystem: "chat",
			Name:      "turns_total",
			Help:      "Total chat turns completed.",
		}, []string{"provider", "status"}),
	}

	// Register all collectors.
	reg.MustRegister(
		m.LLMRequestsTotal,
		m.LLMRequestDuration,
		m.LLMTokensUsed,
		m.KeyPoolSize,
		m.RateLimitRetriesTotal,
		m.ChatTurnsTotal,
	)

	return m
}
