// Package metrics holds the Prometheus collectors of the chat client.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// View metrics
	MessagesRendered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "roomchat_messages_rendered_total",
			Help: "Total messages rendered in the room view",
		},
		[]string{"source"}, // "live" or "history"
	)

	MessagesSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "roomchat_messages_sent_total",
			Help: "Total messages sent by the local user",
		},
	)

	HistoryRequests = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "roomchat_history_requests_total",
			Help: "Total history page requests",
		},
	)

	DroppedEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "roomchat_dropped_events_total",
			Help: "Inbound events dropped without rendering",
		},
		[]string{"reason"}, // "stale", "malformed", "unknown"
	)

	// Transport metrics
	TransportConnects = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "roomchat_transport_connects_total",
			Help: "Transport connection attempts",
		},
		[]string{"result"}, // "ok" or "error"
	)

	AckLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "roomchat_ack_latency_seconds",
			Help:    "Time until the server acknowledged an event",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
	)

	// Web metrics
	SearchQueries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "roomchat_search_queries_total",
			Help: "Total user search queries",
		},
	)
)
