// Package metrics holds the Prometheus collectors of the bridge.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ActiveSessions - registered client sessions.
	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ircbridge_active_sessions",
		Help: "Number of registered client sessions",
	})

	// Connections - accepted client connections by transport.
	Connections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ircbridge_connections_total",
			Help: "Total number of accepted client connections",
		},
		[]string{"transport"},
	)

	// WireMessagesSent - messages written to clients by command.
	WireMessagesSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ircbridge_wire_messages_sent_total",
			Help: "Total number of protocol messages written to clients",
		},
		[]string{"command"},
	)

	// ForwardedMessages - client messages relayed to the backend by kind.
	ForwardedMessages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ircbridge_forwarded_messages_total",
			Help: "Total number of client messages forwarded to the backend",
		},
		[]string{"kind"},
	)

	// ForwardFailures - client messages the backend did not accept.
	ForwardFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ircbridge_forward_failures_total",
		Help: "Total number of client messages that could not be forwarded",
	})

	// NoticeFailures - failure notices that could not be queued for the client.
	NoticeFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ircbridge_failure_notice_errors_total",
		Help: "Total number of forwarding failure notices that could not be delivered",
	})

	// BackendEvents - backend messages by outcome (delivered, echo).
	BackendEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ircbridge_backend_events_total",
			Help: "Total number of messages received from the backend",
		},
		[]string{"outcome"},
	)
)
