package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "holachat"

// Client holds the collectors of the messaging core.
type Client struct {
	PushFrames     *prometheus.CounterVec
	HistoryFetches *prometheus.CounterVec
	Sends          *prometheus.CounterVec
	Reconnects     prometheus.Counter
	Connected      prometheus.Gauge
}

// NewClient registers the client collectors on reg. A nil reg leaves them
// unregistered, which is what tests usually want.
func NewClient(reg prometheus.Registerer) *Client {
	m := &Client{
		PushFrames: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "push_frames_total",
			Help:      "Inbound push frames by outcome.",
		}, []string{"result"}),
		HistoryFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "history_fetches_total",
			Help:      "History fetches by outcome.",
		}, []string{"result"}),
		Sends: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sends_total",
			Help:      "Send attempts by outcome.",
		}, []string{"result"}),
		Reconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "channel_reconnects_total",
			Help:      "Reconnect attempts of the live channel.",
		}),
		Connected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "channel_connected",
			Help:      "1 while the live channel holds a subscription.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.PushFrames, m.HistoryFetches, m.Sends, m.Reconnects, m.Connected)
	}
	return m
}

// Broker holds the collectors of the dev backend hub.
type Broker struct {
	Clients       prometheus.Gauge
	Subscriptions prometheus.Gauge
	Published     *prometheus.CounterVec
}

func NewBroker(reg prometheus.Registerer) *Broker {
	m := &Broker{
		Clients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "broker",
			Name:      "clients",
			Help:      "Connected websocket clients.",
		}),
		Subscriptions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "broker",
			Name:      "subscriptions",
			Help:      "Active destination subscriptions.",
		}),
		Published: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "broker",
			Name:      "frames_published_total",
			Help:      "Frames handed to subscribers by outcome.",
		}, []string{"result"}),
	}
	if reg != nil {
		reg.MustRegister(m.Clients, m.Subscriptions, m.Published)
	}
	return m
}
