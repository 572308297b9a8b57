package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics for the Auster room-session service.
//
// Naming convention: namespace_subsystem_name
// - namespace: auster (application-level grouping)
// - subsystem: room, broker, circuit_breaker, repository, rate_limit (feature-level grouping)
// - name: specific metric (rooms_active, messages_total, etc.)
//
// Metric Types:
// - Gauge: current state (active rooms, circuit breaker state)
// - Counter: cumulative events (messages processed, rollbacks)
// - Histogram: latency distributions (repository round trip)

var (
	// ActiveRooms tracks the current number of live room runtimes.
	ActiveRooms = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "auster",
		Subsystem: "room",
		Name:      "rooms_active",
		Help:      "Current number of active room runtimes",
	})

	// RoomPlayers tracks the number of players currently in each room.
	RoomPlayers = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "auster",
		Subsystem: "room",
		Name:      "players_count",
		Help:      "Number of players currently seated in each room",
	}, []string{"room_id"})

	// RoomCreations tracks room-creation outcomes.
	RoomCreations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "auster",
		Subsystem: "room",
		Name:      "creations_total",
		Help:      "Total room creation attempts by outcome",
	}, []string{"outcome"})

	// RoomRollbacks tracks compensating RemoveRoom calls issued by the
	// orchestrator after a mid-flight creation failure.
	RoomRollbacks = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "auster",
		Subsystem: "room",
		Name:      "rollbacks_total",
		Help:      "Total compensating RemoveRoom calls after a failed room creation",
	})

	// BrokerMessages tracks broker publish/message events processed by a
	// room runtime (CounterVec - cumulative).
	BrokerMessages = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "auster",
		Subsystem: "broker",
		Name:      "messages_total",
		Help:      "Total broker messages processed, by direction and outcome",
	}, []string{"direction", "outcome"})

	// BrokerReconnects tracks reconnect attempts made by the broker adapter.
	BrokerReconnects = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "auster",
		Subsystem: "broker",
		Name:      "reconnect_attempts_total",
		Help:      "Total broker reconnect attempts, by outcome",
	}, []string{"outcome"})

	// CircuitBreakerState tracks the current state of a named circuit
	// breaker (GaugeVec). 0: Closed, 1: Open, 2: Half-Open.
	CircuitBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "auster",
		Subsystem: "circuit_breaker",
		Name:      "state",
		Help:      "Current state of the circuit breaker (0: Closed, 1: Open, 2: Half-Open)",
	}, []string{"service"})

	// RateLimitExceeded tracks the total number of requests that exceeded
	// the rate limit.
	RateLimitExceeded = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "auster",
		Subsystem: "rate_limit",
		Name:      "exceeded_total",
		Help:      "Total number of requests that exceeded the rate limit",
	}, []string{"endpoint"})

	// RepositoryRequests tracks repository-actor requests by kind and outcome.
	RepositoryRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "auster",
		Subsystem: "repository",
		Name:      "requests_total",
		Help:      "Total repository actor requests, by kind and outcome",
	}, []string{"kind", "outcome"})

	// RepositoryRequestDuration tracks the round-trip latency of a
	// repository actor request.
	RepositoryRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "auster",
		Subsystem: "repository",
		Name:      "request_duration_seconds",
		Help:      "Duration of repository actor requests",
		Buckets:   prometheus.DefBuckets,
	}, []string{"kind"})
)
