package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	ProviderLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "tokenpulse",
			Subsystem: "provider",
			Name:      "latency_seconds",
			Help:      "Latency of outbound collaborator calls",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"provider", "op"},
	)

	ProviderErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tokenpulse",
			Subsystem: "provider",
			Name:      "errors_total",
			Help:      "Failed collaborator calls by provider and error kind",
		},
		[]string{"provider", "op", "kind"},
	)

	ProviderThrottled = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tokenpulse",
			Subsystem: "provider",
			Name:      "throttle_wait_total",
			Help:      "Calls that had to wait on the local rate limiter",
		},
		[]string{"provider"},
	)
)

func Register() {
	once.Do(func() {
		prometheus.MustRegister(ProviderLatency, ProviderErrors, ProviderThrottled)
	})
}

// Observe records one call. kind is empty on success.
func Observe(provider, op string, start time.Time, kind string) {
	ProviderLatency.WithLabelValues(provider, op).Observe(time.Since(start).Seconds())
	if kind != "" {
		ProviderErrors.WithLabelValues(provider, op, kind).Inc()
	}
}
