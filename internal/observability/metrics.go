package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	NotificationSent       = "sent"
	NotificationSuppressed = "suppressed"
	NotificationFailed     = "failed"
)

// Metrics stores Prometheus collectors for the poll loop and the gate.
// All methods are safe on a nil receiver.
type Metrics struct {
	registry *prometheus.Registry

	cyclesTotal        *prometheus.CounterVec
	cycleDuration      prometheus.Histogram
	notificationsTotal *prometheus.CounterVec
	cursor             prometheus.Gauge
	lastCycle          prometheus.Gauge
}

func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		cyclesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "hwbot",
				Name:      "poll_cycles_total",
				Help:      "Poll cycles by outcome kind.",
			},
			[]string{"outcome"},
		),
		cycleDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "hwbot",
				Name:      "poll_cycle_duration_seconds",
				Help:      "Duration of a poll cycle including notification delivery.",
				Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
			},
		),
		notificationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "hwbot",
				Name:      "notifications_total",
				Help:      "Notification gate decisions by result (sent, suppressed, failed).",
			},
			[]string{"result"},
		),
		cursor: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "hwbot",
				Name:      "poll_cursor_seconds",
				Help:      "Current from_date cursor (unix seconds).",
			},
		),
		lastCycle: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "hwbot",
				Name:      "poll_last_cycle_timestamp_seconds",
				Help:      "Unix time the last poll cycle finished.",
			},
		),
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.cyclesTotal,
		m.cycleDuration,
		m.notificationsTotal,
		m.cursor,
		m.lastCycle,
	)
	return m
}

func (m *Metrics) Handler() http.Handler {
	if m == nil || m.registry == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveCycle(outcome string, took time.Duration) {
	if m == nil {
		return
	}
	m.cyclesTotal.WithLabelValues(outcome).Inc()
	m.cycleDuration.Observe(took.Seconds())
	m.lastCycle.SetToCurrentTime()
}

func (m *Metrics) IncNotification(result string) {
	if m == nil {
		return
	}
	m.notificationsTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) SetCursor(ts int64) {
	if m == nil {
		return
	}
	m.cursor.Set(float64(ts))
}
