package telemetry

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	discoveryProbesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "discovery_probes_total",
			Help: "GraphQL endpoint probes by port and outcome",
		},
		[]string{"port", "result"},
	)

	cacheRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_requests_total",
			Help: "Cache lookups by outcome",
		},
		[]string{"result"},
	)

	circuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0 closed, 1 open, 2 half-open)",
		},
		[]string{"name"},
	)
)

func ProbeResult(port int, live bool) {
	result := "miss"
	if live {
		result = "live"
	}
	discoveryProbesTotal.WithLabelValues(strconv.Itoa(port), result).Inc()
}

func CacheHit()  { cacheRequestsTotal.WithLabelValues("hit").Inc() }
func CacheMiss() { cacheRequestsTotal.WithLabelValues("miss").Inc() }

func CircuitState(name string, state int) {
	circuitBreakerState.WithLabelValues(name).Set(float64(state))
}
