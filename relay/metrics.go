package relay

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	runningActors = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "gorelay",
			Subsystem: "actor",
			Name:      "running",
			Help:      "The number of running actors per group.",
		}, []string{"group"})
	messagesSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "gorelay",
			Subsystem: "actor",
			Name:      "messages_sent_total",
			Help:      "Total payloads sent downstream.",
		}, []string{"group"})
	messagesReceived = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "gorelay",
			Subsystem: "actor",
			Name:      "messages_received_total",
			Help:      "Total payloads handed to Recv.",
		}, []string{"group"})
	messagesDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "gorelay",
			Subsystem: "actor",
			Name:      "messages_dropped_total",
			Help:      "Total payloads discarded by failed actors while draining.",
		}, []string{"group"})
	poisonReceived = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "gorelay",
			Subsystem: "actor",
			Name:      "poison_received_total",
			Help:      "Total poison pills counted by downstream groups.",
		}, []string{"group"})
	actorFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "gorelay",
			Subsystem: "actor",
			Name:      "failures_total",
			Help:      "Total actors that finished with an error.",
		}, []string{"group"})
)

// InitMetrics registers all metrics in this file
func InitMetrics(registry prometheus.Registerer) {
	registry.MustRegister(runningActors)
	registry.MustRegister(messagesSent)
	registry.MustRegister(messagesReceived)
	registry.MustRegister(messagesDropped)
	registry.MustRegister(poisonReceived)
	registry.MustRegister(actorFailures)
}

// groupMetrics holds the collectors curried with a group label.
type groupMetrics struct {
	running  prometheus.Gauge
	sent     prometheus.Counter
	received prometheus.Counter
	dropped  prometheus.Counter
	poison   prometheus.Counter
	failures prometheus.Counter
}

func newGroupMetrics(group string) *groupMetrics {
	return &groupMetrics{
		running:  runningActors.WithLabelValues(group),
		sent:     messagesSent.WithLabelValues(group),
		received: messagesReceived.WithLabelValues(group),
		dropped:  messagesDropped.WithLabelValues(group),
		poison:   poisonReceived.WithLabelValues(group),
		failures: actorFailures.WithLabelValues(group),
	}
}
