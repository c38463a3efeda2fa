package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/oshokin/doorbell/internal/domain/doorbell"
)

const namespace = "doorbell"

// Metrics holds the doorbell collectors and their registry.
type Metrics struct {
	registry *prometheus.Registry

	sensorTriggered prometheus.Gauge
	sensorAvailable prometheus.Gauge
	transitions     *prometheus.CounterVec
	sessionsActive  prometheus.Gauge
	messagesSent    *prometheus.CounterVec
	sendFailures    prometheus.Counter
}

// New creates and registers the doorbell metrics.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		sensorTriggered: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "sensor",
			Name:      "triggered",
			Help:      "1 while the doorbell sensor is triggered.",
		}),
		sensorAvailable: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "sensor",
			Name:      "available",
			Help:      "1 when the sensor pin was acquired.",
		}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sensor",
			Name:      "transitions_total",
			Help:      "Sensor state transitions by new state.",
		}, []string{"state"}),
		sessionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Connected notification sessions.",
		}),
		messagesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_sent_total",
			Help:      "Messages sent to clients by kind.",
		}, []string{"kind"}),
		sendFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "send_failures_total",
			Help:      "Sends that failed and ended a session.",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.sensorTriggered,
		m.sensorAvailable,
		m.transitions,
		m.sessionsActive,
		m.messagesSent,
		m.sendFailures,
	)

	return m
}

// Registry returns the underlying Prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// SensorAvailable sets the availability gauge.
func (m *Metrics) SensorAvailable(_ context.Context, available bool) {
	m.sensorAvailable.Set(boolToFloat(available))
}

// SensorChanged updates the state gauge and counts the transition.
func (m *Metrics) SensorChanged(_ context.Context, state doorbell.State) {
	m.sensorTriggered.Set(boolToFloat(state.Triggered))
	m.transitions.WithLabelValues(state.String()).Inc()
}

// SessionOpened increments the active session gauge.
func (m *Metrics) SessionOpened() {
	m.sessionsActive.Inc()
}

// SessionClosed decrements the active session gauge.
func (m *Metrics) SessionClosed() {
	m.sessionsActive.Dec()
}

// MessageSent counts a delivered message of the given kind.
func (m *Metrics) MessageSent(kind string) {
	m.messagesSent.WithLabelValues(kind).Inc()
}

// SendFailed counts a failed send.
func (m *Metrics) SendFailed() {
	m.sendFailures.Inc()
}

func boolToFloat(v bool) float64 {
	if v {
		return 1
	}

	return 0
}
