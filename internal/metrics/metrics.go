package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "flightbook_sync"

var (
	once sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by endpoint.",
		},
		[]string{"endpoint"},
	)

	replayAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "replay_attempts_total",
			Help:      "Queue item replay attempts by item type and outcome.",
		},
		[]string{"type", "result"},
	)

	passDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "pass_duration_seconds",
			Help:      "Duration of sync passes by trigger.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"trigger"},
	)

	queueItems = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_items",
			Help:      "Queue items by status at the last status read.",
		},
		[]string{"status"},
	)

	lockContention = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lock_contention_total",
			Help:      "Sync passes skipped because another pass held the lock.",
		},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(httpRequests, replayAttempts, passDuration, queueItems, lockContention)
	})
}

// IncHTTP increments the counter for an endpoint label.
func IncHTTP(endpoint string) {
	httpRequests.WithLabelValues(endpoint).Inc()
}

// ObserveAttempt records one replay attempt.
func ObserveAttempt(itemType string, success bool) {
	result := "failure"
	if success {
		result = "success"
	}
	replayAttempts.WithLabelValues(itemType, result).Inc()
}

// ObservePass records the duration of one pass.
func ObservePass(trigger string, d time.Duration) {
	passDuration.WithLabelValues(trigger).Observe(d.Seconds())
}

// SetQueueGauge publishes the per-status item count.
func SetQueueGauge(status string, n int) {
	queueItems.WithLabelValues(status).Set(float64(n))
}

func IncLockContention() {
	lockContention.Inc()
}
