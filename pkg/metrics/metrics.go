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
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "route", "status"},
	)

	// RequestsTotal tracks total HTTP requests.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	// ConversationsTotal counts conversations by how they were obtained.
	ConversationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_conversations_total",
			Help: "Conversations started or resumed",
		},
		[]string{"outcome"},
	)

	// MessagesTotal counts chat messages by sender type.
	MessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_messages_total",
			Help: "Chat messages stored",
		},
		[]string{"sender"},
	)

	// BotRepliesTotal counts bot replies by the source that produced them.
	BotRepliesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_bot_replies_total",
			Help: "Bot replies by source",
		},
		[]string{"source"},
	)

	// BotReplyDuration tracks bot reply latency.
	BotReplyDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chat_bot_reply_duration_seconds",
			Help:    "Bot reply latency",
			Buckets: []float64{.001, .01, .1, .5, 1, 2, 5, 10, 20},
		},
		[]string{"source"},
	)

	// HumanRequestsTotal counts visitor requests for a human agent.
	HumanRequestsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_human_requests_total",
			Help: "Visitor requests for a human agent",
		},
	)

	// RealtimeConnections tracks open SSE and websocket connections.
	RealtimeConnections = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "realtime_connections_active",
			Help: "Open realtime connections",
		},
		[]string{"kind"},
	)

	// AgentsOnline tracks the number of agents marked online.
	AgentsOnline = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "chat_agents_online",
			Help: "Agents currently online",
		},
	)

	// FeedPublishFailures counts change events that could not be published.
	FeedPublishFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feed_publish_failures_total",
			Help: "Row change events that failed to publish",
		},
		[]string{"table"},
	)

	// BookingsTotal counts booking writes by resulting status.
	BookingsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bookings_total",
			Help: "Bookings created or transitioned, by status",
		},
		[]string{"status"},
	)

	// NotificationsTotal counts admin notifications by channel and result.
	NotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_total",
			Help: "Admin notifications sent",
		},
		[]string{"channel", "result"},
	)
)

// RecordRequest records metrics for an HTTP request.
func RecordRequest(method, route, status string, duration float64) {
	RequestDuration.WithLabelValues(method, route, status).Observe(duration)
	RequestsTotal.WithLabelValues(method, route, status).Inc()
}

// RecordBotReply records a bot reply and its latency.
func RecordBotReply(source string, duration float64) {
	BotRepliesTotal.WithLabelValues(source).Inc()
	BotReplyDuration.WithLabelValues(source).Observe(duration)
}

// ConnectionOpened increments the open connection gauge for kind.
func ConnectionOpened(kind string) {
	RealtimeConnections.WithLabelValues(kind).Inc()
}

// ConnectionClosed decrements the open connection gauge for kind.
func ConnectionClosed(kind string) {
	RealtimeConnections.WithLabelValues(kind).Dec()
}
