// Package metrics holds the Prometheus collectors of a client session.
//
// A nil *Metrics is valid: every method is a no-op, so components record
// unconditionally and metrics stay disabled unless a registerer is given.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "panduza"

// Metrics counts router and attribute activity.
type Metrics struct {
	framesReceived prometheus.Counter
	framesDropped  prometheus.Counter
	decodeErrors   prometheus.Counter
	publishes      prometheus.Counter
	publishErrors  prometheus.Counter
	confirmTimeout prometheus.Counter
	confirmLatency prometheus.Histogram
	routes         prometheus.Gauge
	attributes     prometheus.Gauge
}

// New creates the collectors and registers them with reg. A nil reg returns
// a nil *Metrics.
func New(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		return nil, nil
	}
	m := &Metrics{
		framesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "router",
			Name:      "frames_received_total",
			Help:      "Total number of frames received from the transport",
		}),
		framesDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "router",
			Name:      "frames_dropped_total",
			Help:      "Total number of frames evicted from full listener mailboxes",
		}),
		decodeErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "attribute",
			Name:      "decode_errors_total",
			Help:      "Total number of inbound frames that failed to decode",
		}),
		publishes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "attribute",
			Name:      "publishes_total",
			Help:      "Total number of command frames published",
		}),
		publishErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "attribute",
			Name:      "publish_errors_total",
			Help:      "Total number of command frames rejected by the transport",
		}),
		confirmTimeout: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "attribute",
			Name:      "confirm_timeouts_total",
			Help:      "Total number of writes whose confirmation never arrived",
		}),
		confirmLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "attribute",
			Name:      "confirm_duration_seconds",
			Help:      "Time between publishing a write and receiving its confirmation",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}),
		routes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "router",
			Name:      "routes",
			Help:      "Current number of subscribed topics",
		}),
		attributes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "attribute",
			Name:      "active",
			Help:      "Current number of live attribute cores",
		}),
	}

	for _, c := range []prometheus.Collector{
		m.framesReceived, m.framesDropped, m.decodeErrors,
		m.publishes, m.publishErrors, m.confirmTimeout, m.confirmLatency,
		m.routes, m.attributes,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// FrameReceived counts one inbound frame.
func (m *Metrics) FrameReceived() {
	if m == nil {
		return
	}
	m.framesReceived.Inc()
}

// FrameDropped counts one evicted frame.
func (m *Metrics) FrameDropped() {
	if m == nil {
		return
	}
	m.framesDropped.Inc()
}

// DecodeError counts one undecodable frame.
func (m *Metrics) DecodeError() {
	if m == nil {
		return
	}
	m.decodeErrors.Inc()
}

// Published counts one publication attempt and its outcome.
func (m *Metrics) Published(err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.publishErrors.Inc()
		return
	}
	m.publishes.Inc()
}

// Confirmed records the latency of a confirmed write.
func (m *Metrics) Confirmed(d time.Duration) {
	if m == nil {
		return
	}
	m.confirmLatency.Observe(d.Seconds())
}

// ConfirmTimedOut counts one unconfirmed write.
func (m *Metrics) ConfirmTimedOut() {
	if m == nil {
		return
	}
	m.confirmTimeout.Inc()
}

// RouteAdded tracks a new subscribed topic.
func (m *Metrics) RouteAdded() {
	if m == nil {
		return
	}
	m.routes.Inc()
}

// RouteRemoved tracks a released topic.
func (m *Metrics) RouteRemoved() {
	if m == nil {
		return
	}
	m.routes.Dec()
}

// AttributeOpened tracks a new attribute core.
func (m *Metrics) AttributeOpened() {
	if m == nil {
		return
	}
	m.attributes.Inc()
}

// AttributeClosed tracks a released attribute core.
func (m *Metrics) AttributeClosed() {
	if m == nil {
		return
	}
	m.attributes.Dec()
}
