package observability

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	connectAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "simctl",
			Subsystem: "registry",
			Name:      "connect_attempts_total",
			Help:      "Connection attempts by method and outcome.",
		},
		[]string{"method", "outcome"},
	)
	activeSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "simctl",
			Subsystem: "registry",
			Name:      "active_sessions",
			Help:      "Currently live sessions in the registry table.",
		},
	)
	commandRoundTrips = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "simctl",
			Subsystem: "command",
			Name:      "round_trips_total",
			Help:      "Command submit/wait round trips by method, kind, and outcome.",
		},
		[]string{"method", "kind", "outcome"},
	)
	commandDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "simctl",
			Subsystem: "command",
			Name:      "round_trip_duration_seconds",
			Help:      "Command submit/wait round trip duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "kind"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(connectAttempts, activeSessions, commandRoundTrips, commandDuration)
	})
}

func RecordConnect(method, outcome string) {
	RegisterMetrics()
	connectAttempts.WithLabelValues(method, outcome).Inc()
}

func SetActiveSessions(n int) {
	RegisterMetrics()
	activeSessions.Set(float64(n))
}

func RecordCommand(method, kind, outcome string, duration time.Duration) {
	RegisterMetrics()
	commandRoundTrips.WithLabelValues(method, kind, outcome).Inc()
	commandDuration.WithLabelValues(method, kind).Observe(duration.Seconds())
}
