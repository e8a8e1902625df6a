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
			Namespace: "cellwire",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests.",
		},
		[]string{"service", "method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "cellwire",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path", "status"},
	)
	framesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cellwire",
			Subsystem: "relay",
			Name:      "frames_total",
			Help:      "Frames handled by the relay.",
		},
		[]string{"direction", "operation", "result"},
	)
	frameBytes = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "cellwire",
			Subsystem: "relay",
			Name:      "frame_payload_bytes",
			Help:      "Payload size of relayed frames.",
			Buckets:   prometheus.ExponentialBuckets(16, 4, 10),
		},
		[]string{"direction"},
	)
	codecDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "cellwire",
			Subsystem: "codec",
			Name:      "duration_seconds",
			Help:      "Coordinate codec duration in seconds.",
			Buckets:   prometheus.ExponentialBuckets(1e-6, 4, 12),
		},
		[]string{"operation"},
	)
	relayClients = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "cellwire",
			Subsystem: "relay",
			Name:      "clients",
			Help:      "Connected relay clients.",
		},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(httpRequests, httpDuration, framesTotal, frameBytes, codecDuration, relayClients)
	})
}

func RecordHTTPRequest(service, method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(service, method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(service, method, path, statusLabel).Observe(duration.Seconds())
}

// RecordFrame counts one frame; direction is "in" or "out".
func RecordFrame(direction, operation string, payloadLen int, ok bool) {
	RegisterMetrics()
	result := "ok"
	if !ok {
		result = "error"
	}
	framesTotal.WithLabelValues(direction, operation, result).Inc()
	frameBytes.WithLabelValues(direction).Observe(float64(payloadLen))
}

func RecordCodec(operation string, duration time.Duration) {
	RegisterMetrics()
	codecDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

func SetRelayClients(n int) {
	RegisterMetrics()
	relayClients.Set(float64(n))
}
