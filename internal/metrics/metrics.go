package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	syncOps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tidesync",
			Name:      "sync_operations_total",
			Help:      "Synced operations by entity, action and result.",
		},
		[]string{"entity", "action", "result"},
	)

	pendingOps = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "tidesync",
			Name:      "pending_operations",
			Help:      "Operations waiting in the operation log.",
		},
	)

	deadLetters = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "tidesync",
			Name:      "dead_letter_operations",
			Help:      "Operations parked in the dead letter sink.",
		},
	)

	breakerTrips = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "tidesync",
			Name:      "circuit_breaker_trips_total",
			Help:      "Sync passes aborted by consecutive failures.",
		},
	)

	probes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tidesync",
			Name:      "remote_probes_total",
			Help:      "Connectivity probes by result.",
		},
		[]string{"result"},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tidesync",
			Name:      "http_requests_total",
			Help:      "HTTP requests by endpoint.",
		},
		[]string{"endpoint"},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(syncOps, pendingOps, deadLetters, breakerTrips, probes, httpRequests)
	})
}

// IncSyncOp counts one finished remote write attempt.
func IncSyncOp(entity, action, result string) {
	syncOps.WithLabelValues(entity, action, result).Inc()
}

// SetPending updates the operation log gauge.
func SetPending(n int) {
	pendingOps.Set(float64(n))
}

// SetDeadLetters updates the dead letter gauge.
func SetDeadLetters(n int) {
	deadLetters.Set(float64(n))
}

// IncBreakerTrip counts a circuit breaker abort.
func IncBreakerTrip() {
	breakerTrips.Inc()
}

// IncProbe counts a connectivity probe outcome.
func IncProbe(ok bool) {
	result := "ok"
	if !ok {
		result = "fail"
	}
	probes.WithLabelValues(result).Inc()
}

// IncHTTP increments the counter for an endpoint label.
func IncHTTP(endpoint string) {
	httpRequests.WithLabelValues(endpoint).Inc()
}
