// Package metrics exposes Prometheus instrumentation for the HTTP layer and
// the waitlist domain.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the registry and collectors for one process.
type Metrics struct {
	registry *prometheus.Registry

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
	inFlight     prometheus.Gauge

	joins             *prometheus.CounterVec
	referralsVerified *prometheus.CounterVec
	sharesVerified    *prometheus.CounterVec
	rankRecomputes    *prometheus.CounterVec
}

// New creates a registry with all collectors registered.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "waitroom_http_requests_total",
			Help: "HTTP requests by service, method, path, and status.",
		}, []string{"service", "method", "path", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "waitroom_http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"service", "method", "path"}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "waitroom_http_requests_in_flight",
			Help: "Requests currently being served.",
		}),
		joins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "waitroom_waitlist_joins_total",
			Help: "Waitlist joins by project.",
		}, []string{"project_id"}),
		referralsVerified: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "waitroom_referrals_verified_total",
			Help: "Referral edges verified by project.",
		}, []string{"project_id"}),
		sharesVerified: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "waitroom_shares_verified_total",
			Help: "Social share claims verified by project.",
		}, []string{"project_id"}),
		rankRecomputes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "waitroom_rank_recomputes_total",
			Help: "Rank recomputations by project.",
		}, []string{"project_id"}),
	}

	m.registry.MustRegister(
		m.httpRequests,
		m.httpDuration,
		m.inFlight,
		m.joins,
		m.referralsVerified,
		m.sharesVerified,
		m.rankRecomputes,
	)

	return m
}

// Handler serves the /metrics endpoint for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordHTTPRequest records one completed request.
func (m *Metrics) RecordHTTPRequest(service, method, path, status string, duration time.Duration) {
	m.httpRequests.WithLabelValues(service, method, path, status).Inc()
	m.httpDuration.WithLabelValues(service, method, path).Observe(duration.Seconds())
}

// IncrementInFlight marks a request as started.
func (m *Metrics) IncrementInFlight() { m.inFlight.Inc() }

// DecrementInFlight marks a request as finished.
func (m *Metrics) DecrementInFlight() { m.inFlight.Dec() }

// RecordJoin counts a successful waitlist join.
func (m *Metrics) RecordJoin(projectID string) {
	if m == nil {
		return
	}
	m.joins.WithLabelValues(projectID).Inc()
}

// RecordReferralVerified counts a referral verification taking effect.
func (m *Metrics) RecordReferralVerified(projectID string) {
	if m == nil {
		return
	}
	m.referralsVerified.WithLabelValues(projectID).Inc()
}

// RecordShareVerified counts a share claim verification taking effect.
func (m *Metrics) RecordShareVerified(projectID string) {
	if m == nil {
		return
	}
	m.sharesVerified.WithLabelValues(projectID).Inc()
}

// RecordRankRecompute counts one rank recomputation pass.
func (m *Metrics) RecordRankRecompute(projectID string) {
	if m == nil {
		return
	}
	m.rankRecomputes.WithLabelValues(projectID).Inc()
}
