package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics for the telehealth relay.
//
// Naming convention: namespace_subsystem_name
// - namespace: telehealth (application-level grouping)
// - subsystem: relay, presence, assistant (feature-level grouping)
// - name: specific metric (connections_active, events_total, etc.)
//
// Metric Types:
// - Gauge: Current state (connections, roster size, breaker state)
// - Counter: Cumulative events (envelopes routed, deliveries, errors)
// - Histogram: Latency distributions (routing time)

var (
	// ActiveConnections tracks the current number of open WebSocket connections.
	ActiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "telehealth",
		Subsystem: "relay",
		Name:      "connections_active",
		Help:      "Current number of active WebSocket connections",
	})

	// RosterSize tracks the number of joined participants.
	RosterSize = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "telehealth",
		Subsystem: "presence",
		Name:      "participants_count",
		Help:      "Number of participants currently in the roster",
	})

	// RelayEvents tracks the total number of envelopes routed, by event and outcome.
	RelayEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "telehealth",
		Subsystem: "relay",
		Name:      "events_total",
		Help:      "Total relay envelopes processed",
	}, []string{"event_type", "status"})

	// EventRoutingDuration tracks time spent routing one envelope.
	EventRoutingDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "telehealth",
		Subsystem: "relay",
		Name:      "event_routing_seconds",
		Help:      "Time spent routing relay envelopes",
		Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
	}, []string{"event_type"})

	// DroppedDeliveries counts envelopes dropped because a client buffer was full.
	DroppedDeliveries = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "telehealth",
		Subsystem: "relay",
		Name:      "dropped_deliveries_total",
		Help:      "Envelopes dropped due to full client buffers",
	}, []string{"event_type"})

	// CircuitBreakerState exposes breaker state per dependency (0 closed, 1 open, 2 half-open).
	CircuitBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "telehealth",
		Subsystem: "relay",
		Name:      "circuit_breaker_state",
		Help:      "Circuit breaker state per external dependency (0=closed, 1=open, 2=half-open)",
	}, []string{"dependency"})

	// CircuitBreakerFailures counts requests rejected by an open breaker.
	CircuitBreakerFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "telehealth",
		Subsystem: "relay",
		Name:      "circuit_breaker_failures_total",
		Help:      "Requests rejected because a circuit breaker was open",
	}, []string{"dependency"})

	// RateLimitRequests counts requests that passed a rate limit check.
	RateLimitRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "telehealth",
		Subsystem: "relay",
		Name:      "rate_limit_requests_total",
		Help:      "Requests checked against a rate limit",
	}, []string{"endpoint"})

	// RateLimitExceeded counts requests rejected by a rate limit.
	RateLimitExceeded = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "telehealth",
		Subsystem: "relay",
		Name:      "rate_limit_exceeded_total",
		Help:      "Requests rejected because a rate limit was reached",
	}, []string{"endpoint", "limit_type"})

	// AssistantRequests counts inference endpoint calls by outcome.
	AssistantRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "telehealth",
		Subsystem: "assistant",
		Name:      "requests_total",
		Help:      "Assistant inference requests by outcome",
	}, []string{"operation", "status"})
)

func IncConnection() {
	ActiveConnections.Inc()
}

func DecConnection() {
	ActiveConnections.Dec()
}
