package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Storefront records session, shipping, checkout and collaborator metrics.
type Storefront struct {
	sessions        prometheus.Gauge
	shippingQuotes  *prometheus.CounterVec
	checkouts       *prometheus.CounterVec
	confirmations   *prometheus.CounterVec
	catalogFetches  *prometheus.CounterVec
	upstreamLatency *prometheus.HistogramVec
	requests        *prometheus.HistogramVec
}

// NewStorefront registers the storefront metrics on the provided registerer.
// A nil registerer yields a no-op recorder.
func NewStorefront(reg prometheus.Registerer) *Storefront {
	if reg == nil {
		return &Storefront{}
	}
	m := &Storefront{
		sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "storefront_active_sessions",
			Help: "Hydrated storefront sessions held in memory.",
		}),
		shippingQuotes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storefront_shipping_quotes_total",
			Help: "Shipping resolutions by result source.",
		}, []string{"source"}),
		checkouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storefront_checkouts_total",
			Help: "Checkout submissions by outcome.",
		}, []string{"outcome"}),
		confirmations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storefront_confirmations_total",
			Help: "Payment session verifications by result.",
		}, []string{"result"}),
		catalogFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storefront_catalog_fetches_total",
			Help: "Catalog fetches by result.",
		}, []string{"result"}),
		upstreamLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "storefront_upstream_duration_seconds",
			Help:    "Latency of calls to remote collaborators.",
			Buckets: prometheus.DefBuckets,
		}, []string{"upstream"}),
		requests: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "storefront_http_request_duration_seconds",
			Help:    "Duration of HTTP requests by method and status code.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "code"}),
	}
	reg.MustRegister(m.sessions, m.shippingQuotes, m.checkouts, m.confirmations, m.catalogFetches, m.upstreamLatency, m.requests)
	return m
}

// SetActiveSessions reports the size of the session registry.
func (m *Storefront) SetActiveSessions(n int) {
	if m == nil || m.sessions == nil {
		return
	}
	m.sessions.Set(float64(n))
}

// IncShippingQuote counts one shipping resolution.
func (m *Storefront) IncShippingQuote(source string) {
	if m == nil || m.shippingQuotes == nil {
		return
	}
	m.shippingQuotes.WithLabelValues(normalizeLabel(source)).Inc()
}

// IncCheckout counts one checkout submission.
func (m *Storefront) IncCheckout(outcome string) {
	if m == nil || m.checkouts == nil {
		return
	}
	m.checkouts.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// IncConfirmation counts one payment verification.
func (m *Storefront) IncConfirmation(result string) {
	if m == nil || m.confirmations == nil {
		return
	}
	m.confirmations.WithLabelValues(normalizeLabel(result)).Inc()
}

// IncCatalogFetch counts one catalog fetch.
func (m *Storefront) IncCatalogFetch(result string) {
	if m == nil || m.catalogFetches == nil {
		return
	}
	m.catalogFetches.WithLabelValues(normalizeLabel(result)).Inc()
}

// ObserveUpstream records the duration of one remote call.
func (m *Storefront) ObserveUpstream(upstream string, duration time.Duration) {
	if m == nil || m.upstreamLatency == nil {
		return
	}
	m.upstreamLatency.WithLabelValues(normalizeLabel(upstream)).Observe(duration.Seconds())
}

// ObserveRequest records one served HTTP request.
func (m *Storefront) ObserveRequest(method string, status int, duration time.Duration) {
	if m == nil || m.requests == nil {
		return
	}
	m.requests.WithLabelValues(normalizeLabel(method), strconv.Itoa(status)).Observe(duration.Seconds())
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
