package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// State machine metrics
var (
	// AccountTransitionsTotal tracks account state updates by target state.
	AccountTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "account_transitions_total",
			Help: "Total account state updates by target state",
		},
		[]string{"state"},
	)

	// SessionTransitionsTotal tracks session state updates by target state.
	SessionTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "session_transitions_total",
			Help: "Total session state updates by target state",
		},
		[]string{"state"},
	)

	// TransactionDuration tracks state store transaction latency in seconds.
	TransactionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "state_store_transaction_duration_seconds",
			Help:    "State store transaction duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"operation"},
	)
)

// Event bus metrics
var (
	// BusPublishedTotal tracks events published per bus.
	BusPublishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "event_bus_published_total",
			Help: "Total events published by bus",
		},
		[]string{"bus"},
	)

	// BusSuppressedTotal tracks consecutive-duplicate events suppressed per bus.
	BusSuppressedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "event_bus_suppressed_total",
			Help: "Total consecutive-duplicate events suppressed by bus",
		},
		[]string{"bus"},
	)

	// BusOverflowsTotal tracks fatal buffer overflows per bus.
	BusOverflowsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "event_bus_overflows_total",
			Help: "Total buffer overflows by bus",
		},
		[]string{"bus"},
	)

	// BusSubscribers tracks current subscriber count per bus.
	BusSubscribers = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "event_bus_subscribers",
			Help: "Current subscriber count by bus",
		},
		[]string{"bus"},
	)
)

// WebSocket stream metrics
var (
	// StreamConnectedClients tracks currently connected websocket stream clients.
	StreamConnectedClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "stream_connected_clients",
			Help: "Number of currently connected websocket stream clients",
		},
	)

	// StreamMessageSendDuration tracks websocket message send latency in seconds.
	StreamMessageSendDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "stream_message_send_duration_seconds",
			Help:    "WebSocket stream message send duration in seconds",
			Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1, .5},
		},
	)

	// StreamPingFailures tracks failed websocket pings.
	StreamPingFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "stream_ping_failures_total",
			Help: "Total failed websocket stream pings",
		},
	)

	// StreamSlowClientsEvicted tracks stream clients disconnected for not keeping up.
	StreamSlowClientsEvicted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "stream_slow_clients_evicted_total",
			Help: "Total websocket stream clients evicted for falling behind",
		},
	)
)
