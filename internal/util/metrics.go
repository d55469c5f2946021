package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CartOperationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cart_operations_total",
		Help: "Total number of cart operations by outcome",
	}, []string{"operation", "outcome"})

	CartBackendLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "cart_backend_latency_seconds",
		Help:    "Latency of cart backend round trips",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})

	CartPersistFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cart_persist_failures_total",
		Help: "Total number of failed cart persistence calls",
	}, []string{"stage"})

	CartUndoTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cart_undo_total",
		Help: "Total number of applied undo operations",
	})

	DiscountRejectedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cart_discount_rejected_total",
		Help: "Total number of rejected discount codes",
	})

	BackendBreakerTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cart_backend_breaker_transitions_total",
		Help: "Total number of cart backend circuit breaker state changes",
	}, []string{"to"})

	SessionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "cart_sessions_active",
		Help: "Number of live cart sessions",
	})

	CheckoutsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cart_checkouts_total",
		Help: "Total number of checkout requests",
	}, []string{"outcome"})

	EventsPublishFailedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cart_events_publish_failed_total",
		Help: "Total number of cart events that failed to publish",
	})

	EventsConsumedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cart_events_consumed_total",
		Help: "Total number of consumed cart events",
	}, []string{"event_type"})

	HTTPRateLimitedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "http_rate_limited_total",
		Help: "Total number of requests rejected by the rate limiter",
	})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
