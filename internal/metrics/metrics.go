package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "giveaway"

// Metrics holds Prometheus metrics for the service. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	DrawsTotal      *prometheus.CounterVec
	JoinsTotal      *prometheus.CounterVec
	SweepItemsTotal *prometheus.CounterVec
	SweepDuration   prometheus.Histogram
	NotifyDispatch  *prometheus.CounterVec
	BotEventsTotal  *prometheus.CounterVec
	RequestCounter  *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
}

// New registers the metrics on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		DrawsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "draws_total",
				Help:      "Draw attempts by outcome",
			},
			[]string{"outcome"},
		),
		JoinsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "joins_total",
				Help:      "Join attempts by outcome",
			},
			[]string{"outcome"},
		),
		SweepItemsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "sweep",
				Name:      "items_total",
				Help:      "Per-giveaway sweep outcomes",
			},
			[]string{"outcome"},
		),
		SweepDuration: f.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "sweep",
				Name:      "duration_seconds",
				Help:      "Sweep run duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
		),
		NotifyDispatch: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "notifications",
				Name:      "dispatched_total",
				Help:      "Notification dispatch attempts by outcome",
			},
			[]string{"outcome"},
		),
		BotEventsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "bot",
				Name:      "events_total",
				Help:      "Bot stream events by type and outcome",
			},
			[]string{"type", "outcome"},
		),
		RequestCounter: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		RequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
	}
}

func (m *Metrics) Draw(outcome string) {
	if m == nil {
		return
	}
	m.DrawsTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Join(outcome string) {
	if m == nil {
		return
	}
	m.JoinsTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) SweepItem(outcome string) {
	if m == nil {
		return
	}
	m.SweepItemsTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveSweep(d time.Duration) {
	if m == nil {
		return
	}
	m.SweepDuration.Observe(d.Seconds())
}

func (m *Metrics) Dispatch(outcome string) {
	if m == nil {
		return
	}
	m.NotifyDispatch.WithLabelValues(outcome).Inc()
}

func (m *Metrics) BotEvent(eventType, outcome string) {
	if m == nil {
		return
	}
	m.BotEventsTotal.WithLabelValues(eventType, outcome).Inc()
}

func (m *Metrics) ObserveRequest(method, route, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.RequestCounter.WithLabelValues(method, route, status).Inc()
	m.RequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}
