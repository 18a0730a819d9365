// Package metrics holds the Prometheus collectors exported on /metrics by the
// console server.
//
// API client:
//   - fleet_api_requests_total{method,outcome}: outcome is "ok" or an error kind
//   - fleet_api_request_duration_seconds{method}
//   - fleet_api_retries_total
//   - fleet_api_circuit_breaker_state: 0=closed, 1=half-open, 2=open
//
// Query cache:
//   - fleet_cache_lookups_total{endpoint,result}: hit, miss, stale, coalesced, error
//   - fleet_cache_invalidations_total{mutation}
//   - fleet_cache_entries
//
// Session and notifications:
//   - fleet_session_events_total{event}
//   - fleet_notifications_total{type,priority}
//   - fleet_notify_transport_connected
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	APIRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fleet_api_requests_total",
		Help: "Outbound fleet API requests by method and outcome",
	}, []string{"method", "outcome"})

	APIRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "fleet_api_request_duration_seconds",
		Help:    "Outbound fleet API request latency",
		Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
	}, []string{"method"})

	APIRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fleet_api_retries_total",
		Help: "Automatic GET retries after a network failure",
	})

	CircuitBreakerState = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "fleet_api_circuit_breaker_state",
		Help: "API circuit breaker state (0=closed, 1=half-open, 2=open)",
	})

	CacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fleet_cache_lookups_total",
		Help: "Query cache lookups by endpoint and result",
	}, []string{"endpoint", "result"})

	CacheInvalidations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fleet_cache_invalidations_total",
		Help: "Cache entries invalidated, by triggering mutation",
	}, []string{"mutation"})

	CacheEntries = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "fleet_cache_entries",
		Help: "Entries currently held by the query cache",
	})

	SessionEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fleet_session_events_total",
		Help: "Session lifecycle events (hydrate, login, login_failed, logout, refresh, unauthorized)",
	}, []string{"event"})

	Notifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fleet_notifications_total",
		Help: "Notifications received by type and priority",
	}, []string{"type", "priority"})

	TransportConnected = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "fleet_notify_transport_connected",
		Help: "1 when the notification transport reports a connection",
	})
)
