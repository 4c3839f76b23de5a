package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics aggregates the Prometheus instruments used by the streaming backend.
// A nil *Metrics is valid and turns every record method into a no-op, so unit
// tests can exercise components without a registry.
type Metrics struct {
	registry *prometheus.Registry

	rotationCycles    *prometheus.CounterVec
	rotationLastOK    *prometheus.GaugeVec
	proxyRequests     *prometheus.CounterVec
	proxyAuthRetries  prometheus.Counter
	urlCacheHits      prometheus.Counter
	urlCacheMisses    prometheus.Counter
	resolverRefreshes prometheus.Counter
}

// New creates a registry and registers all collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		rotationCycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "watchparty",
			Subsystem: "rotation",
			Name:      "fetches_total",
			Help:      "Secret fetch attempts by cache key and result.",
		}, []string{"key", "result"}),
		rotationLastOK: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "watchparty",
			Subsystem: "rotation",
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last successful fetch per cache key.",
		}, []string{"key"}),
		proxyRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "watchparty",
			Subsystem: "proxy",
			Name:      "requests_total",
			Help:      "Streaming proxy requests by relayed status code.",
		}, []string{"status"}),
		proxyAuthRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "watchparty",
			Subsystem: "proxy",
			Name:      "auth_retries_total",
			Help:      "Upstream 401/403 responses that triggered a forced re-resolve.",
		}),
		urlCacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "watchparty",
			Subsystem: "urlcache",
			Name:      "hits_total",
			Help:      "Streaming URL cache hits.",
		}),
		urlCacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "watchparty",
			Subsystem: "urlcache",
			Name:      "misses_total",
			Help:      "Streaming URL cache misses.",
		}),
		resolverRefreshes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "watchparty",
			Subsystem: "resolver",
			Name:      "token_refreshes_total",
			Help:      "OAuth refresh-token exchanges performed by the resolver.",
		}),
	}

	m.registry.MustRegister(
		m.rotationCycles,
		m.rotationLastOK,
		m.proxyRequests,
		m.proxyAuthRetries,
		m.urlCacheHits,
		m.urlCacheMisses,
		m.resolverRefreshes,
	)

	return m
}

// Handler exposes the registry in Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RotationFetch records one secret fetch attempt.
func (m *Metrics) RotationFetch(key string, ok bool, at float64) {
	if m == nil {
		return
	}
	result := "error"
	if ok {
		result = "ok"
		m.rotationLastOK.WithLabelValues(key).Set(at)
	}
	m.rotationCycles.WithLabelValues(key, result).Inc()
}

// ProxyRequest records the status code relayed to the viewer.
func (m *Metrics) ProxyRequest(status string) {
	if m == nil {
		return
	}
	m.proxyRequests.WithLabelValues(status).Inc()
}

// ProxyAuthRetry records a 401/403-triggered retry.
func (m *Metrics) ProxyAuthRetry() {
	if m == nil {
		return
	}
	m.proxyAuthRetries.Inc()
}

// URLCacheHit records a streaming URL served from cache.
func (m *Metrics) URLCacheHit() {
	if m == nil {
		return
	}
	m.urlCacheHits.Inc()
}

// URLCacheMiss records a cache miss that required resolving.
func (m *Metrics) URLCacheMiss() {
	if m == nil {
		return
	}
	m.urlCacheMisses.Inc()
}

// TokenRefresh records an OAuth refresh exchange.
func (m *Metrics) TokenRefresh() {
	if m == nil {
		return
	}
	m.resolverRefreshes.Inc()
}
