// Package metrics holds the relay's Prometheus collectors.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	ConnectedDevices = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "fitrelay_connected_devices",
		Help: "Number of devices currently bound to a connection",
	})

	OpenConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "fitrelay_open_connections",
		Help: "Number of open websocket connections, registered or not",
	})

	InboundMessages = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fitrelay_inbound_messages_total",
		Help: "Inbound device messages by type",
	}, []string{"type"})

	Sends = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fitrelay_sends_total",
		Help: "Outbound messages by kind and result",
	}, []string{"kind", "result"})

	BroadcastDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "fitrelay_broadcast_cycle_seconds",
		Help:    "Time spent in one broadcast cycle",
		Buckets: prometheus.DefBuckets,
	})

	FeedPolls = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fitrelay_feed_polls_total",
		Help: "External feed polls by result",
	}, []string{"result"})

	Commands = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fitrelay_commands_total",
		Help: "Operator commands by action and outcome",
	}, []string{"action", "outcome"})
)

func init() {
	prometheus.MustRegister(ConnectedDevices)
	prometheus.MustRegister(OpenConnections)
	prometheus.MustRegister(InboundMessages)
	prometheus.MustRegister(Sends)
	prometheus.MustRegister(BroadcastDuration)
	prometheus.MustRegister(FeedPolls)
	prometheus.MustRegister(Commands)
}

// Sent records the result of one outbound send.
func Sent(kind string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	Sends.WithLabelValues(kind, result).Inc()
}
