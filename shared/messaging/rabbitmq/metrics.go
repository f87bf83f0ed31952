package rabbitmq

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

const Namespace = "messaging"

// Dispositions recorded on messaging_consumed_total.
const (
	DispositionCompleted = "completed"
	DispositionAbandoned = "abandoned"
	DispositionRejected  = "rejected"
)

// Metrics holds the broker client collectors. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	published       *prometheus.CounterVec
	consumed        *prometheus.CounterVec
	handlerDuration *prometheus.HistogramVec
	inFlight        *prometheus.GaugeVec
	openSenders     prometheus.Gauge
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		published: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "published_total",
			Help:      "Total messages published by destination and status",
		}, []string{"destination", "status"}),
		consumed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "consumed_total",
			Help:      "Total messages received by destination and final disposition",
		}, []string{"destination", "disposition"}),
		handlerDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "handler_duration_seconds",
			Help:      "Time spent in message handlers",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}, []string{"destination"}),
		inFlight: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "in_flight",
			Help:      "Messages currently being handled",
		}, []string{"destination"}),
		openSenders: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "open_senders",
			Help:      "Number of open per-destination sender channels",
		}),
	}

	err := errors.Join(
		reg.Register(m.published),
		reg.Register(m.consumed),
		reg.Register(m.handlerDuration),
		reg.Register(m.inFlight),
		reg.Register(m.openSenders),
	)
	if err != nil {
		return nil, err
	}

	return m, nil
}

func (m *Metrics) RecordPublish(destination string, err error) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	m.published.WithLabelValues(destination, status).Inc()
}

func (m *Metrics) RecordDisposition(destination, disposition string) {
	if m == nil {
		return
	}
	m.consumed.WithLabelValues(destination, disposition).Inc()
}

func (m *Metrics) ObserveHandler(destination string, seconds float64) {
	if m == nil {
		return
	}
	m.handlerDuration.WithLabelValues(destination).Observe(seconds)
}

func (m *Metrics) IncInFlight(destination string) {
	if m == nil {
		return
	}
	m.inFlight.WithLabelValues(destination).Inc()
}

func (m *Metrics) DecInFlight(destination string) {
	if m == nil {
		return
	}
	m.inFlight.WithLabelValues(destination).Dec()
}

func (m *Metrics) SetOpenSenders(n int) {
	if m == nil {
		return
	}
	m.openSenders.Set(float64(n))
}
