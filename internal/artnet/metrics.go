package artnet

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricRecvDatagrams = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "artnetnode",
		Subsystem: "node",
		Name:      "recv_datagrams_total",
		Help:      "Total number of Art-Net datagrams received, by kind",
	}, []string{"kind"})
	metricDroppedDatagrams = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "artnetnode",
		Subsystem: "node",
		Name:      "dropped_datagrams_total",
		Help:      "Total number of datagrams ignored, by reason",
	}, []string{"reason"})
	metricRecvDelivery = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "artnetnode",
		Subsystem: "node",
		Name:      "recv_delivery_total",
		Help:      "Total number of datagrams received, by destination (broadcast or unicast)",
	}, []string{"delivery"})
	metricSentDatagrams = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "artnetnode",
		Subsystem: "node",
		Name:      "sent_datagrams_total",
		Help:      "Total number of Art-Net datagrams sent, by kind",
	}, []string{"kind"})
	metricSendErrors = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "artnetnode",
		Subsystem: "node",
		Name:      "send_errors_total",
		Help:      "Total number of failed datagram sends",
	})
	metricPeers = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "artnetnode",
		Subsystem: "node",
		Name:      "peers",
		Help:      "Number of known Art-Net peers",
	})
	metricState = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "artnetnode",
		Subsystem: "node",
		Name:      "state",
		Help:      "Lifecycle state (0 hibernating, 1 disconnected, 2 active)",
	})
)

const (
	kindDMX       = "dmx"
	kindPoll      = "poll"
	kindPollReply = "poll_reply"
	kindProbe     = "ip_check"
	kindShutdown  = "shutdown"
	kindUnknown   = "unknown"

	reasonPreamble = "preamble"
	reasonForeign  = "foreign"
	reasonLocal    = "local"

	deliveryBroadcast = "broadcast"
	deliveryUnicast   = "unicast"
	deliveryUnknown   = "unknown"
)
