// Package metrics exposes the gateway's Prometheus instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Slot fetch outcomes.
const (
	FetchOK    = "ok"
	FetchEmpty = "empty"
	FetchError = "error"
	FetchStale = "stale"
)

// Booking outcomes.
const (
	BookingSuccess   = "success"
	BookingRejected  = "validation_rejected"
	BookingUpstream  = "upstream_error"
	BookingDuplicate = "duplicate_submit"
)

type Metrics struct {
	httpDuration *prometheus.HistogramVec
	slotFetches  *prometheus.CounterVec
	bookings     *prometheus.CounterVec
	activeFlows  prometheus.Gauge
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "gateway",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Latency of gateway HTTP requests",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "status"}),
		slotFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gateway",
			Subsystem: "booking",
			Name:      "slot_fetch_total",
			Help:      "Slot availability fetches by outcome",
		}, []string{"outcome"}),
		bookings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gateway",
			Subsystem: "booking",
			Name:      "submissions_total",
			Help:      "Booking confirm attempts by outcome",
		}, []string{"outcome"}),
		activeFlows: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "gateway",
			Subsystem: "booking",
			Name:      "active_flows",
			Help:      "Live booking flows held in memory",
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.httpDuration, m.slotFetches, m.bookings, m.activeFlows)
	return m
}

func (m *Metrics) ObserveHTTP(method, status string, seconds float64) {
	if m == nil {
		return
	}
	m.httpDuration.WithLabelValues(method, status).Observe(seconds)
}

func (m *Metrics) ObserveSlotFetch(outcome string) {
	if m == nil {
		return
	}
	m.slotFetches.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveBooking(outcome string) {
	if m == nil {
		return
	}
	m.bookings.WithLabelValues(outcome).Inc()
}

func (m *Metrics) SetActiveFlows(n int) {
	if m == nil {
		return
	}
	m.activeFlows.Set(float64(n))
}
