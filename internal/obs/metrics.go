package obs

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"pdf_stream_proxy/internal/cache"
)

type Metrics struct {
	registry          *prometheus.Registry
	requests          *prometheus.CounterVec
	proxyErrors       *prometheus.CounterVec
	upstreamErrors    *prometheus.CounterVec
	cacheRequests     *prometheus.CounterVec
	cacheEvictions    *prometheus.CounterVec
	coalesceBreakaway prometheus.Counter
	requestDuration   *prometheus.HistogramVec
	upstreamRoundTrip *prometheus.HistogramVec
	cacheSizeBytes    prometheus.Gauge
	cacheEntries      prometheus.Gauge
	cacheMaxSizeBytes prometheus.Gauge
}

func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pdfproxy_requests_total",
		Help: "Total proxy requests",
	}, []string{"method", "status_class"})

	proxyErrors := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pdfproxy_proxy_errors_total",
		Help: "Total proxy-generated errors",
	}, []string{"category"})

	upstreamErrors := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pdfproxy_upstream_errors_total",
		Help: "Total upstream fetch errors",
	}, []string{"op", "category"})

	cacheRequests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pdfproxy_cache_requests_total",
		Help: "Total chunk cache lookups",
	}, []string{"status"})

	cacheEvictions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pdfproxy_cache_evictions_total",
		Help: "Total chunk cache removals",
	}, []string{"reason"})

	coalesceBreakaway := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pdfproxy_cache_coalesce_breakaway_total",
		Help: "Total coalesced fills abandoned after wait timeout",
	})

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pdfproxy_request_duration_seconds",
		Help:    "Proxy request duration",
		Buckets: prometheus.DefBuckets,
	}, []string{"method"})

	upstreamRoundTrip := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pdfproxy_upstream_roundtrip_seconds",
		Help:    "Upstream roundtrip duration",
		Buckets: prometheus.DefBuckets,
	}, []string{"op"})

	cacheSizeBytes := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "pdfproxy_cache_size_bytes",
		Help: "Resident chunk cache bytes",
	})

	cacheEntries := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "pdfproxy_cache_entries",
		Help: "Resident chunk cache entries",
	})

	cacheMaxSizeBytes := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "pdfproxy_cache_max_size_bytes",
		Help: "Configured chunk cache capacity",
	})

	registry.MustRegister(requests, proxyErrors, upstreamErrors, cacheRequests, cacheEvictions, coalesceBreakaway, requestDuration, upstreamRoundTrip, cacheSizeBytes, cacheEntries, cacheMaxSizeBytes)

	return &Metrics{
		registry:          registry,
		requests:          requests,
		proxyErrors:       proxyErrors,
		upstreamErrors:    upstreamErrors,
		cacheRequests:     cacheRequests,
		cacheEvictions:    cacheEvictions,
		coalesceBreakaway: coalesceBreakaway,
		requestDuration:   requestDuration,
		upstreamRoundTrip: upstreamRoundTrip,
		cacheSizeBytes:    cacheSizeBytes,
		cacheEntries:      cacheEntries,
		cacheMaxSizeBytes: cacheMaxSizeBytes,
	}
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveRequest(method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(method, statusClass(status)).Inc()
	m.requestDuration.WithLabelValues(method).Observe(duration.Seconds())
}

func (m *Metrics) RecordProxyError(category string) {
	if m == nil {
		return
	}
	if category == "" {
		category = "unknown"
	}
	m.proxyErrors.WithLabelValues(category).Inc()
}

func (m *Metrics) RecordUpstreamError(op string, category string) {
	if m == nil {
		return
	}
	if category == "" {
		category = "unknown"
	}
	m.upstreamErrors.WithLabelValues(op, category).Inc()
}

func (m *Metrics) ObserveUpstreamRoundTrip(op string, duration time.Duration) {
	if m == nil {
		return
	}
	m.upstreamRoundTrip.WithLabelValues(op).Observe(duration.Seconds())
}

func (m *Metrics) RecordCacheRequest(status string) {
	if m == nil {
		return
	}
	if status == "" {
		status = "unknown"
	}
	m.cacheRequests.WithLabelValues(status).Inc()
}

func (m *Metrics) RecordCacheEviction(reason string) {
	if m == nil {
		return
	}
	if reason == "" {
		reason = "unknown"
	}
	m.cacheEvictions.WithLabelValues(reason).Inc()
}

func (m *Metrics) RecordCoalesceBreakaway() {
	if m == nil {
		return
	}
	m.coalesceBreakaway.Inc()
}

func (m *Metrics) SetCacheStats(stats cache.Stats) {
	if m == nil {
		return
	}
	m.cacheSizeBytes.Set(float64(stats.SizeBytes))
	m.cacheEntries.Set(float64(stats.Entries))
	m.cacheMaxSizeBytes.Set(float64(stats.MaxSizeBytes))
}

func statusClass(status int) string {
	if status <= 0 {
		return "unknown"
	}
	return fmt.Sprintf("%dxx", status/100)
}
