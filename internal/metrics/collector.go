// Package metrics exposes the gateway's prometheus instrumentation.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// Collector holds every prometheus metric the gateway records.
type Collector struct {
	Registry *prometheus.Registry

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	backendRequestsTotal   *prometheus.CounterVec
	backendRequestDuration *prometheus.HistogramVec
	backendTokensUsed      *prometheus.CounterVec

	routeDecisionsTotal *prometheus.CounterVec
	oauthRefreshesTotal *prometheus.CounterVec

	logger *zap.Logger
}

// NewCollector registers and returns a Collector under the given namespace.
// Metrics are registered on a private registry rather than the global
// default so that constructing multiple Collectors (in tests, or if the
// gateway is ever embedded) never collides.
func NewCollector(namespace string, logger *zap.Logger) *Collector {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)
	c := &Collector{Registry: registry, logger: logger.With(zap.String("component", "metrics"))}

	c.httpRequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests handled by the gateway.",
		},
		[]string{"method", "path", "status"},
	)

	c.httpRequestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	c.backendRequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backend_requests_total",
			Help:      "Total number of requests forwarded to an upstream backend.",
		},
		[]string{"backend", "tier", "status"},
	)

	c.backendRequestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "backend_request_duration_seconds",
			Help:      "Upstream backend request duration in seconds.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"backend", "tier"},
	)

	c.backendTokensUsed = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backend_tokens_total",
			Help:      "Total number of tokens billed against an upstream backend.",
		},
		[]string{"backend", "model", "tier", "direction"}, // direction: input, output
	)

	c.routeDecisionsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "route_decisions_total",
			Help:      "Total number of tier routing decisions, including misconfigured outcomes.",
		},
		[]string{"tier", "backend", "misconfigured"},
	)

	c.oauthRefreshesTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "oauth_refreshes_total",
			Help:      "Total number of OAuth token refresh attempts.",
		},
		[]string{"status"}, // success, failure
	)

	return c
}

// ObserveHTTPRequest records one completed HTTP request.
func (c *Collector) ObserveHTTPRequest(method, path, status string, duration time.Duration) {
	c.httpRequestsTotal.WithLabelValues(method, path, status).Inc()
	c.httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// ObserveBackendRequest records one completed upstream call.
func (c *Collector) ObserveBackendRequest(backend, tier, status string, duration time.Duration) {
	c.backendRequestsTotal.WithLabelValues(backend, tier, status).Inc()
	c.backendRequestDuration.WithLabelValues(backend, tier).Observe(duration.Seconds())
}

// ObserveBackendTokens records tokens billed against a backend/model/tier.
func (c *Collector) ObserveBackendTokens(backend, model, tier string, inputTokens, outputTokens int64) {
	c.backendTokensUsed.WithLabelValues(backend, model, tier, "input").Add(float64(inputTokens))
	c.backendTokensUsed.WithLabelValues(backend, model, tier, "output").Add(float64(outputTokens))
}

// ObserveRouteDecision records a routing outcome.
func (c *Collector) ObserveRouteDecision(tier, backend string, misconfigured bool) {
	status := "false"
	if misconfigured {
		status = "true"
	}
	c.routeDecisionsTotal.WithLabelValues(tier, backend, status).Inc()
}

// ObserveOAuthRefresh records an OAuth refresh attempt outcome.
func (c *Collector) ObserveOAuthRefresh(success bool) {
	status := "success"
	if !success {
		status = "failure"
	}
	c.oauthRefreshesTotal.WithLabelValues(status).Inc()
}
