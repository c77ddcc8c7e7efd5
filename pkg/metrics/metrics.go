package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "diabot",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "endpoint", "status"},
	)

	ChatEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "diabot",
			Subsystem: "chat",
			Name:      "events_total",
			Help:      "Chat events handled by the reconciler",
		},
		[]string{"event", "identity", "outcome"},
	)

	ConversationsCreatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "diabot",
			Subsystem: "chat",
			Name:      "conversations_created_total",
			Help:      "Conversations persisted",
		},
	)

	ResponderErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "diabot",
			Subsystem: "responder",
			Name:      "errors_total",
			Help:      "Query responder failures",
		},
		[]string{"provider"},
	)

	AuthRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "diabot",
			Subsystem: "auth",
			Name:      "requests_total",
			Help:      "Register and login attempts",
		},
		[]string{"action", "status"},
	)
)

// RecordChatEvent counts one reconciler event. identity is "user" or "anonymous".
func RecordChatEvent(event string, authenticated bool, outcome string) {
	identity := "anonymous"
	if authenticated {
		identity = "user"
	}
	ChatEventsTotal.WithLabelValues(event, identity, outcome).Inc()
}

func RecordAuth(action, status string) {
	AuthRequestsTotal.WithLabelValues(action, status).Inc()
}
