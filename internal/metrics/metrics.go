// Package metrics exposes Prometheus collectors for the delivery core.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ActiveConnections tracks the number of live WebSocket connections.
	ActiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "chatterbox",
		Name:      "active_connections",
		Help:      "Number of live WebSocket connections.",
	})

	// MessagesDispatched counts messages fanned out to live recipients.
	MessagesDispatched = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "chatterbox",
		Name:      "messages_dispatched_total",
		Help:      "Messages fanned out after persistence.",
	})

	// EventsDropped counts per-recipient pushes dropped due to slow consumers.
	EventsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "chatterbox",
		Name:      "events_dropped_total",
		Help:      "Events dropped because a connection's send buffer was full.",
	})

	// HistoryQueries counts history page fetches.
	HistoryQueries = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "chatterbox",
		Name:      "history_queries_total",
		Help:      "History page queries served.",
	})
)
