package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "closurectl",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests.",
		},
		[]string{"node", "method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "closurectl",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"node", "method", "path", "status"},
	)
	optimizeCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "closurectl",
			Subsystem: "optimizer",
			Name:      "calls_total",
			Help:      "Optimize calls by outcome.",
		},
		[]string{"level", "outcome"},
	)
	optimizeDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "closurectl",
			Subsystem: "optimizer",
			Name:      "call_duration_seconds",
			Help:      "Optimize call duration in seconds, compiler startup included.",
			Buckets:   []float64{0.25, 0.5, 1, 2, 4, 8, 16, 32, 64},
		},
		[]string{"level", "outcome"},
	)
	optimizeBytes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "closurectl",
			Subsystem: "optimizer",
			Name:      "bytes_total",
			Help:      "Script bytes passed through the optimizer.",
		},
		[]string{"direction"},
	)
	scratchInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "closurectl",
			Subsystem: "scratch",
			Name:      "artifacts_in_flight",
			Help:      "Scratch artifacts currently staged.",
		},
	)
	scratchCleanupFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "closurectl",
			Subsystem: "scratch",
			Name:      "cleanup_failures_total",
			Help:      "Scratch artifacts that could not be removed.",
		},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			httpRequests,
			httpDuration,
			optimizeCalls,
			optimizeDuration,
			optimizeBytes,
			scratchInFlight,
			scratchCleanupFailures,
		)
	})
}

func RecordHTTPRequest(node, method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(node, method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(node, method, path, statusLabel).Observe(duration.Seconds())
}

func RecordOptimize(level, outcome string, duration time.Duration, inBytes, outBytes int) {
	RegisterMetrics()
	optimizeCalls.WithLabelValues(level, outcome).Inc()
	optimizeDuration.WithLabelValues(level, outcome).Observe(duration.Seconds())
	optimizeBytes.WithLabelValues("in").Add(float64(inBytes))
	optimizeBytes.WithLabelValues("out").Add(float64(outBytes))
}

func ScratchStaged() {
	RegisterMetrics()
	scratchInFlight.Inc()
}

func ScratchReleased(ok bool) {
	RegisterMetrics()
	scratchInFlight.Dec()
	if !ok {
		scratchCleanupFailures.Inc()
	}
}
