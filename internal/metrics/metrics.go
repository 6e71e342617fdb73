// Package metrics exposes the simulator's prometheus collectors. Every method
// is safe on a nil *Metrics so components can run without instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"telemetry-sim/internal/model"
)

const namespace = "telemetry_sim"

type Metrics struct {
	registry      *prometheus.Registry
	produced      *prometheus.CounterVec
	delivered     prometheus.Counter
	dropped       prometheus.Counter
	activeStreams prometheus.Gauge
	streamsClosed *prometheus.CounterVec
	rejected      prometheus.Counter
}

// New registers the collectors on a private registry. queueDepth is sampled
// on every scrape; it may be nil.
func New(queueDepth func() float64) *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		produced: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_produced_total",
			Help:      "Telemetry events produced by the sensor simulators.",
		}, []string{"type"}),
		delivered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_delivered_total",
			Help:      "Telemetry events written to a subscriber stream.",
		}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_dropped_total",
			Help:      "Telemetry events discarded by the queue capacity bound.",
		}),
		activeStreams: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_streams",
			Help:      "Subscriber streams currently being served.",
		}),
		streamsClosed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "streams_closed_total",
			Help:      "Subscriber streams closed, by outcome.",
		}, []string{"outcome"}),
		rejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "streams_rejected_total",
			Help:      "Subscribe calls refused because the stream limit was reached.",
		}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.produced,
		m.delivered,
		m.dropped,
		m.activeStreams,
		m.streamsClosed,
		m.rejected,
	)
	if queueDepth != nil {
		reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_depth",
			Help:      "Events waiting in the telemetry queue.",
		}, queueDepth))
	}
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) EventProduced(t model.TelemetryType) {
	if m == nil {
		return
	}
	m.produced.WithLabelValues(string(t)).Inc()
}

func (m *Metrics) EventDelivered() {
	if m == nil {
		return
	}
	m.delivered.Inc()
}

func (m *Metrics) EventDropped() {
	if m == nil {
		return
	}
	m.dropped.Inc()
}

func (m *Metrics) StreamOpened() {
	if m == nil {
		return
	}
	m.activeStreams.Inc()
}

func (m *Metrics) StreamClosed(outcome string) {
	if m == nil {
		return
	}
	m.activeStreams.Dec()
	m.streamsClosed.WithLabelValues(outcome).Inc()
}

func (m *Metrics) StreamRejected() {
	if m == nil {
		return
	}
	m.rejected.Inc()
}
