package api

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nerrad567/ciot-device-core/internal/transport"
)

const metricsNamespace = "ciot"

// Metrics holds the agent's Prometheus collectors on a private registry.
//
// It implements transport.MessageLogSink: every recorded TSL message
// increments ciot_messages_total{type,code}.
//
// Safe for concurrent use.
type Metrics struct {
	registry     *prometheus.Registry
	messages     *prometheus.CounterVec
	connected    prometheus.Gauge
	reconnects   prometheus.Counter
	httpRequests *prometheus.CounterVec
}

// NewMetrics creates the collectors, including the Go runtime and process
// collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		messages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "messages_total",
			Help:      "TSL messages recorded, by log type and device code.",
		}, []string{"type", "code"}),
		connected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "connected",
			Help:      "1 while the broker session is connected.",
		}),
		reconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "connects_total",
			Help:      "Broker connections established, including reconnects.",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "http_requests_total",
			Help:      "Status API requests, by method and status.",
		}, []string{"method", "status"}),
	}

	m.registry.MustRegister(
		m.messages,
		m.connected,
		m.reconnects,
		m.httpRequests,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// WriteMessageLog implements transport.MessageLogSink.
func (m *Metrics) WriteMessageLog(l transport.MessageLog) {
	m.messages.WithLabelValues(l.Type.String(), l.Code).Inc()
}

// SetConnected records a connection state change.
func (m *Metrics) SetConnected(connected bool) {
	if connected {
		m.connected.Set(1)
		m.reconnects.Inc()
		return
	}
	m.connected.Set(0)
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) observeRequest(method, status string) {
	m.httpRequests.WithLabelValues(method, status).Inc()
}
