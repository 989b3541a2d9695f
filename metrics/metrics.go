package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "rubits"

// Validation outcomes used as label values
const (
	OutcomeWon        = "won"
	OutcomeLost       = "lost"
	OutcomeIncomplete = "incomplete"
	OutcomeRejected   = "rejected"
	OutcomeError      = "error"
)

// Metrics holds the service's Prometheus collectors
type Metrics struct {
	Registry *prometheus.Registry

	httpInFlight  prometheus.Gauge
	httpRequests  *prometheus.CounterVec
	httpDuration  *prometheus.HistogramVec
	validations   *prometheus.CounterVec
	purchases     prometheus.Counter
	ticketsSold   *prometheus.CounterVec
	intactTickets *prometheus.GaugeVec
	auditEvents   *prometheus.CounterVec
	feedListeners prometheus.Gauge
	rateLimited   *prometheus.CounterVec
}

// New creates the collectors on a fresh registry, including process and Go
// runtime collectors.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		httpInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		}, []string{"method", "route"}),
		validations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tickets",
			Name:      "validations_total",
			Help:      "Ticket validations by outcome.",
		}, []string{"outcome"}),
		purchases: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tickets",
			Name:      "purchases_total",
			Help:      "Successful purchase requests.",
		}),
		ticketsSold: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tickets",
			Name:      "purchased_total",
			Help:      "Tickets assigned to players.",
		}, []string{"draw_id"}),
		intactTickets: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "tickets",
			Name:      "intact",
			Help:      "Tickets still available for purchase.",
		}, []string{"draw_id"}),
		auditEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "audit",
			Name:      "events_total",
			Help:      "Audit events delivered to Kafka by result.",
		}, []string{"topic", "result"}),
		feedListeners: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "winfeed",
			Name:      "listeners",
			Help:      "Connected win feed websocket clients.",
		}),
		rateLimited: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "rate_limited_total",
			Help:      "Requests rejected by the rate limiter.",
		}, []string{"route"}),
	}

	m.Registry.MustRegister(
		m.httpInFlight,
		m.httpRequests,
		m.httpDuration,
		m.validations,
		m.purchases,
		m.ticketsSold,
		m.intactTickets,
		m.auditEvents,
		m.feedListeners,
		m.rateLimited,
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)
	return m
}

// Handler exposes the registry
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

// ObserveRequest records one finished HTTP request
func (m *Metrics) ObserveRequest(method, route, status string, d time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	m.httpRequests.WithLabelValues(method, route, status).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// InFlight tracks in-flight requests; call the returned func when done
func (m *Metrics) InFlight() func() {
	m.httpInFlight.Inc()
	return m.httpInFlight.Dec
}

// RecordValidation counts a validation outcome
func (m *Metrics) RecordValidation(outcome string) {
	m.validations.WithLabelValues(outcome).Inc()
}

// RecordPurchase counts a purchase of n tickets from a draw
func (m *Metrics) RecordPurchase(drawID string, n int) {
	m.purchases.Inc()
	m.ticketsSold.WithLabelValues(drawID).Add(float64(n))
}

// SetIntact replaces the intact inventory gauge
func (m *Metrics) SetIntact(counts map[string]int) {
	m.intactTickets.Reset()
	for drawID, n := range counts {
		m.intactTickets.WithLabelValues(drawID).Set(float64(n))
	}
}

// RecordAuditEvent counts an audit event delivery; usable as the producer's OnResult
func (m *Metrics) RecordAuditEvent(topic string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.auditEvents.WithLabelValues(topic, result).Inc()
}

// FeedListenerConnected tracks a websocket listener; call the returned func on disconnect
func (m *Metrics) FeedListenerConnected() func() {
	m.feedListeners.Inc()
	return m.feedListeners.Dec
}

// RecordRateLimited counts a request rejected by the rate limiter
func (m *Metrics) RecordRateLimited(route string) {
	m.rateLimited.WithLabelValues(route).Inc()
}
