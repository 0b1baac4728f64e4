// Package metrics exposes Prometheus instrumentation for the real-time engine.
//
// A nil *Metrics is valid and records nothing, so components can be built
// without instrumentation in tests.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	// Connections is the number of live websocket connections.
	Connections prometheus.Gauge

	// OnlineUsers is the number of users whose presence is not offline.
	OnlineUsers prometheus.Gauge

	// ActiveChannels is the number of channels with at least one subscriber.
	ActiveChannels prometheus.Gauge

	// EventsSent counts outbound events queued to connections.
	// Labels: type
	EventsSent *prometheus.CounterVec

	// EventsDropped counts outbound events dropped because a send queue was full
	// or the connection was closing.
	// Labels: type
	EventsDropped *prometheus.CounterVec

	// BroadcastFanout observes how many connections a channel broadcast reached.
	BroadcastFanout prometheus.Histogram

	// MessagesPublished counts publish attempts.
	// Labels: status (success|error)
	MessagesPublished *prometheus.CounterVec

	// ReactionToggles counts reaction toggles.
	// Labels: action (add|remove)
	ReactionToggles *prometheus.CounterVec

	// NotificationsCreated counts persisted notifications.
	// Labels: type (mention|message|channel_invite)
	NotificationsCreated *prometheus.CounterVec

	// StorageErrors counts storage collaborator failures.
	// Labels: operation
	StorageErrors *prometheus.CounterVec
}

// New registers all metrics with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Connections: f.NewGauge(prometheus.GaugeOpts{
			Name: "chat_connections",
			Help: "Number of live websocket connections",
		}),
		OnlineUsers: f.NewGauge(prometheus.GaugeOpts{
			Name: "chat_online_users",
			Help: "Number of users that are online or busy",
		}),
		ActiveChannels: f.NewGauge(prometheus.GaugeOpts{
			Name: "chat_active_channels",
			Help: "Number of channels with at least one live subscriber",
		}),
		EventsSent: f.NewCounterVec(prometheus.CounterOpts{
			Name: "chat_events_sent_total",
			Help: "Outbound events queued to connections by type",
		}, []string{"type"}),
		EventsDropped: f.NewCounterVec(prometheus.CounterOpts{
			Name: "chat_events_dropped_total",
			Help: "Outbound events dropped for slow or closed connections by type",
		}, []string{"type"}),
		BroadcastFanout: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "chat_broadcast_fanout",
			Help:    "Connections reached per channel broadcast",
			Buckets: []float64{0, 1, 2, 5, 10, 25, 50, 100, 250, 1000},
		}),
		MessagesPublished: f.NewCounterVec(prometheus.CounterOpts{
			Name: "chat_messages_published_total",
			Help: "Message publish attempts by status",
		}, []string{"status"}),
		ReactionToggles: f.NewCounterVec(prometheus.CounterOpts{
			Name: "chat_reaction_toggles_total",
			Help: "Reaction toggles by resulting action",
		}, []string{"action"}),
		NotificationsCreated: f.NewCounterVec(prometheus.CounterOpts{
			Name: "chat_notifications_created_total",
			Help: "Persisted notifications by type",
		}, []string{"type"}),
		StorageErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "chat_storage_errors_total",
			Help: "Storage collaborator failures by operation",
		}, []string{"operation"}),
	}
}

func (m *Metrics) ConnectionOpened() {
	if m != nil {
		m.Connections.Inc()
	}
}

func (m *Metrics) ConnectionClosed() {
	if m != nil {
		m.Connections.Dec()
	}
}

func (m *Metrics) UserOnline() {
	if m != nil {
		m.OnlineUsers.Inc()
	}
}

func (m *Metrics) UserOffline() {
	if m != nil {
		m.OnlineUsers.Dec()
	}
}

func (m *Metrics) ChannelOpened() {
	if m != nil {
		m.ActiveChannels.Inc()
	}
}

func (m *Metrics) ChannelClosed() {
	if m != nil {
		m.ActiveChannels.Dec()
	}
}

func (m *Metrics) EventSent(eventType string) {
	if m != nil {
		m.EventsSent.WithLabelValues(eventType).Inc()
	}
}

func (m *Metrics) EventDropped(eventType string) {
	if m != nil {
		m.EventsDropped.WithLabelValues(eventType).Inc()
	}
}

func (m *Metrics) Fanout(n int) {
	if m != nil {
		m.BroadcastFanout.Observe(float64(n))
	}
}

func (m *Metrics) MessagePublished(err error) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	m.MessagesPublished.WithLabelValues(status).Inc()
}

func (m *Metrics) ReactionToggled(added bool) {
	if m == nil {
		return
	}
	action := "remove"
	if added {
		action = "add"
	}
	m.ReactionToggles.WithLabelValues(action).Inc()
}

func (m *Metrics) NotificationCreated(notificationType string) {
	if m != nil {
		m.NotificationsCreated.WithLabelValues(notificationType).Inc()
	}
}

func (m *Metrics) StorageError(operation string) {
	if m != nil {
		m.StorageErrors.WithLabelValues(operation).Inc()
	}
}
