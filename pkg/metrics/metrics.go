// Package metrics provides Prometheus metrics instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestDuration tracks HTTP request duration.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"method", "path", "status"},
	)

	// RequestsTotal tracks total HTTP requests.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// LLMStreamDuration tracks LLM streaming response duration.
	LLMStreamDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "llm_stream_duration_seconds",
			Help:    "LLM streaming response duration",
			Buckets: []float64{1, 2, 5, 10, 20, 30, 45, 60, 90, 120},
		},
		[]string{"model", "status"},
	)

	// LLMTokensTotal tracks total LLM tokens processed.
	LLMTokensTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "llm_tokens_total",
			Help: "Total LLM tokens processed",
		},
		[]string{"model", "direction"},
	)

	// ToolCallsTotal tracks tool invocations by result.
	ToolCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "llm_tool_calls_total",
			Help: "Total tool calls made on behalf of the model",
		},
		[]string{"tool", "result"},
	)

	// RateLimitedTotal tracks requests rejected by the rate limiter.
	RateLimitedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_rate_limited_total",
			Help: "Requests rejected by the rate limiter",
		},
		[]string{"path"},
	)

	// NATSConnected is 1 while the NATS connection is up.
	NATSConnected = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "nats_connected",
			Help: "Whether the NATS connection is up",
		},
	)

	// SSEConnectionsActive tracks active SSE connections.
	SSEConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sse_connections_active",
			Help: "Number of active SSE connections",
		},
	)

	// ChatOutcomesTotal tracks how chat turns ended.
	ChatOutcomesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_outcomes_total",
			Help: "Chat turns by outcome",
		},
		[]string{"interface", "outcome"},
	)

	// MessagesTotal tracks persisted messages.
	MessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "messages_total",
			Help: "Total messages persisted",
		},
		[]string{"role"},
	)

	// SessionsTotal tracks created sessions.
	SessionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sessions_total",
			Help: "Total sessions created",
		},
	)

	// ReplyQueueDepth tracks replies waiting to be persisted.
	ReplyQueueDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "reply_queue_depth",
			Help: "Assistant replies waiting to be persisted",
		},
		[]string{"queue"},
	)

	// ReplyPersistTotal tracks reply persistence attempts by result.
	ReplyPersistTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reply_persist_total",
			Help: "Assistant reply persistence attempts",
		},
		[]string{"queue", "result"},
	)
)

// RecordRequest records metrics for an HTTP request.
func RecordRequest(method, path, status string, duration float64) {
	RequestDuration.WithLabelValues(method, path, status).Observe(duration)
	RequestsTotal.WithLabelValues(method, path, status).Inc()
}

// RecordLLMStream records metrics for an LLM streaming response.
func RecordLLMStream(model, status string, duration float64, tokensIn, tokensOut int) {
	LLMStreamDuration.WithLabelValues(model, status).Observe(duration)
	LLMTokensTotal.WithLabelValues(model, "in").Add(float64(tokensIn))
	LLMTokensTotal.WithLabelValues(model, "out").Add(float64(tokensOut))
}

// RecordToolCall records one tool invocation.
func RecordToolCall(tool, result string) {
	ToolCallsTotal.WithLabelValues(tool, result).Inc()
}

// RecordChatOutcome records how a chat turn ended.
func RecordChatOutcome(iface, outcome string) {
	ChatOutcomesTotal.WithLabelValues(iface, outcome).Inc()
}

// RecordMessage records a persisted message.
func RecordMessage(role string) {
	MessagesTotal.WithLabelValues(role).Inc()
}

// RecordSession records a created session.
func RecordSession() {
	SessionsTotal.Inc()
}

// RecordReplyPersist records a reply persistence attempt.
func RecordReplyPersist(queue, result string) {
	ReplyPersistTotal.WithLabelValues(queue, result).Inc()
}

// IncrementSSEConnections increments the active SSE connection count.
func IncrementSSEConnections() {
	SSEConnectionsActive.Inc()
}

// DecrementSSEConnections decrements the active SSE connection count.
func DecrementSSEConnections() {
	SSEConnectionsActive.Dec()
}

// RecordRateLimited records a rejected request.
func RecordRateLimited(path string) {
	RateLimitedTotal.WithLabelValues(path).Inc()
}

// SetNATSConnected records the NATS connection state.
func SetNATSConnected(up bool) {
	if up {
		NATSConnected.Set(1)
		return
	}
	NATSConnected.Set(0)
}
