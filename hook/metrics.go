package hook

import (
	"github.com/prometheus/client_golang/prometheus"
)

// MetricsHook exposes broker activity as prometheus collectors, giving the
// teacher's "pluggable observer" extension point (hook/manager.go) a
// concrete home: counters/gauges updated from the same callback points
// every other hook observes, registered into a caller-owned registry so a
// metrics/ admin-surface can expose them (out of scope here per spec.md
// Non-goals on RESTful admin APIs).
type MetricsHook struct {
	*Base

	connectionsTotal  prometheus.Counter
	connectionsActive prometheus.Gauge
	publishesTotal    prometheus.Counter
	publishesDropped  *prometheus.CounterVec
	subscriptions     prometheus.Gauge
	retainedExpired   prometheus.Counter
	clientsExpired    prometheus.Counter
}

// NewMetricsHook builds the collector set and registers it into reg.
func NewMetricsHook(reg prometheus.Registerer) *MetricsHook {
	h := &MetricsHook{
		Base: NewHookBase("metrics"),
		connectionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mqtt_connections_total",
			Help: "Total number of accepted CONNECT handshakes.",
		}),
		connectionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "mqtt_connections_active",
			Help: "Number of currently connected sessions.",
		}),
		publishesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mqtt_publishes_total",
			Help: "Total number of PUBLISH packets accepted from clients.",
		}),
		publishesDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mqtt_publishes_dropped_total",
			Help: "Total number of outbound publishes dropped, by reason.",
		}, []string{"reason"}),
		subscriptions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "mqtt_subscriptions_active",
			Help: "Number of currently active subscriptions.",
		}),
		retainedExpired: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mqtt_retained_expired_total",
			Help: "Total number of retained messages purged by expiry.",
		}),
		clientsExpired: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mqtt_clients_expired_total",
			Help: "Total number of persistent sessions evicted by expiry.",
		}),
	}

	reg.MustRegister(
		h.connectionsTotal, h.connectionsActive, h.publishesTotal,
		h.publishesDropped, h.subscriptions, h.retainedExpired, h.clientsExpired,
	)
	return h
}

func (h *MetricsHook) Provides(event Event) bool {
	switch event {
	case OnConnect, OnDisconnect, OnPublish, OnPublishDropped, OnSubscribed,
		OnUnsubscribed, OnRetainedExpired, OnClientExpired:
		return true
	default:
		return false
	}
}

func (h *MetricsHook) OnConnect(client *Client, packet *ConnectPacket) error {
	h.connectionsTotal.Inc()
	h.connectionsActive.Inc()
	return nil
}

func (h *MetricsHook) OnDisconnect(client *Client, err error, expire bool) error {
	h.connectionsActive.Dec()
	return nil
}

func (h *MetricsHook) OnPublish(client *Client, packet *PublishPacket) error {
	h.publishesTotal.Inc()
	return nil
}

func (h *MetricsHook) OnPublishDropped(client *Client, packet *PublishPacket, reason DropReason) error {
	h.publishesDropped.WithLabelValues(reason.String()).Inc()
	return nil
}

func (h *MetricsHook) OnSubscribed(client *Client, sub *Subscription) error {
	h.subscriptions.Inc()
	return nil
}

func (h *MetricsHook) OnUnsubscribed(client *Client, topicFilter string) error {
	h.subscriptions.Dec()
	return nil
}

func (h *MetricsHook) OnRetainedExpired(topic string) error {
	h.retainedExpired.Inc()
	return nil
}

func (h *MetricsHook) OnClientExpired(clientID string) error {
	h.clientsExpired.Inc()
	return nil
}
