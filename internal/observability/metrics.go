package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce            sync.Once
	httpRequestsTotal       *prometheus.CounterVec
	httpLatencySeconds      *prometheus.HistogramVec
	realtimeConnections     prometheus.Gauge
	chatMessagesTotal       prometheus.Counter
	chatCorruptedTotal      prometheus.Counter
	ticketTransitionsTotal  *prometheus.CounterVec
	signalingRoomsActive    prometheus.Gauge
	signalingRelayedTotal   *prometheus.CounterVec
	notificationsSentTotal  *prometheus.CounterVec
	ticketsUpdatedFanoutTot prometheus.Counter
)

// RegisterMetrics initialises the Prometheus collectors used across the API.
func RegisterMetrics() {
	registerOnce.Do(func() {
		httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "algoprep_http_requests_total",
			Help: "Total number of API requests served.",
		}, []string{"method", "route", "status"})

		httpLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "algoprep_http_latency_seconds",
			Help:    "Latency distribution for API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		realtimeConnections = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "algoprep_realtime_connections",
			Help: "Number of websocket connections currently served.",
		})

		chatMessagesTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "algoprep_chat_messages_total",
			Help: "Total number of chat messages persisted.",
		})

		chatCorruptedTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "algoprep_chat_corrupted_messages_total",
			Help: "Total number of chat messages that failed decryption on read.",
		})

		ticketTransitionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "algoprep_ticket_transitions_total",
			Help: "Total number of ticket lifecycle transitions applied.",
		}, []string{"transition"})

		signalingRoomsActive = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "algoprep_signaling_rooms_active",
			Help: "Number of signaling rooms with at least one member.",
		})

		signalingRelayedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "algoprep_signaling_relayed_total",
			Help: "Total number of signaling payloads relayed between peers.",
		}, []string{"kind"})

		notificationsSentTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "algoprep_notifications_sent_total",
			Help: "Total number of notifications created, by type.",
		}, []string{"type"})

		ticketsUpdatedFanoutTot = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "algoprep_tickets_updated_broadcasts_total",
			Help: "Total number of tickets-updated broadcasts emitted.",
		})

		prometheus.MustRegister(
			httpRequestsTotal,
			httpLatencySeconds,
			realtimeConnections,
			chatMessagesTotal,
			chatCorruptedTotal,
			ticketTransitionsTotal,
			signalingRoomsActive,
			signalingRelayedTotal,
			notificationsSentTotal,
			ticketsUpdatedFanoutTot,
		)
	})
}

// HTTPRequests exposes the counter for API requests.
func HTTPRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return httpRequestsTotal
}

// HTTPLatency exposes the latency histogram for API requests.
func HTTPLatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return httpLatencySeconds
}

// RealtimeConnections exposes the gauge of live websocket connections.
func RealtimeConnections() prometheus.Gauge {
	RegisterMetrics()
	return realtimeConnections
}

// ChatMessages exposes the counter of persisted chat messages.
func ChatMessages() prometheus.Counter {
	RegisterMetrics()
	return chatMessagesTotal
}

// ChatCorruptedMessages exposes the counter of undecryptable messages.
func ChatCorruptedMessages() prometheus.Counter {
	RegisterMetrics()
	return chatCorruptedTotal
}

// TicketTransitions exposes the counter of lifecycle transitions.
func TicketTransitions() *prometheus.CounterVec {
	RegisterMetrics()
	return ticketTransitionsTotal
}

// SignalingRooms exposes the gauge of active signaling rooms.
func SignalingRooms() prometheus.Gauge {
	RegisterMetrics()
	return signalingRoomsActive
}

// SignalingRelayed exposes the counter of relayed signaling payloads.
func SignalingRelayed() *prometheus.CounterVec {
	RegisterMetrics()
	return signalingRelayedTotal
}

// NotificationsSent exposes the counter of created notifications.
func NotificationsSent() *prometheus.CounterVec {
	RegisterMetrics()
	return notificationsSentTotal
}

// TicketsUpdatedBroadcasts exposes the counter of invalidation broadcasts.
func TicketsUpdatedBroadcasts() prometheus.Counter {
	RegisterMetrics()
	return ticketsUpdatedFanoutTot
}
