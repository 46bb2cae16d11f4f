package metrics

import (
	"time"

	"github.com/marmos91/nfsgate/pkg/stream"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// streamMetrics is the Prometheus implementation of stream.Metrics.
//
// Stream-level series count what callers read and wrote; protocol-level
// series count the READ, WRITE and COMMIT calls issued on their behalf.
type streamMetrics struct {
	streamOps        *prometheus.CounterVec
	streamBytes      *prometheus.CounterVec
	streamDuration   *prometheus.HistogramVec
	protocolOps      *prometheus.CounterVec
	protocolBytes    *prometheus.CounterVec
	protocolDuration *prometheus.HistogramVec
	prefetch         *prometheus.CounterVec
	backpressure     prometheus.Counter
}

// NewStreamMetrics returns stream collectors registered on the global
// registry, or nil when metrics are disabled.
func NewStreamMetrics() stream.Metrics {
	if !IsEnabled() {
		return nil
	}
	return newStreamMetrics(GetRegistry())
}

func newStreamMetrics(reg prometheus.Registerer) *streamMetrics {
	buckets := []float64{
		0.00001, // 10µs
		0.0001,  // 100µs
		0.001,   // 1ms
		0.01,    // 10ms
		0.1,     // 100ms
		1,       // 1s
		10,      // 10s
	}

	return &streamMetrics{
		streamOps: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "stream",
				Name:      "operations_total",
				Help:      "Total number of stream reads and writes",
			},
			[]string{"direction"},
		),
		streamBytes: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "stream",
				Name:      "bytes_total",
				Help:      "Total bytes read from or written to streams",
			},
			[]string{"direction"},
		),
		streamDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "stream",
				Name:      "operation_duration_seconds",
				Help:      "Duration of stream reads and writes in seconds",
				Buckets:   buckets,
			},
			[]string{"direction"},
		),
		protocolOps: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "stream",
				Name:      "protocol_operations_total",
				Help:      "Total number of remote READ, WRITE and COMMIT calls issued by streams",
			},
			[]string{"direction", "result"},
		),
		protocolBytes: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "stream",
				Name:      "protocol_bytes_total",
				Help:      "Total bytes moved by remote READ and WRITE calls",
			},
			[]string{"direction"},
		),
		protocolDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "stream",
				Name:      "protocol_duration_seconds",
				Help:      "Duration of remote READ, WRITE and COMMIT calls in seconds",
				Buckets:   buckets,
			},
			[]string{"direction"},
		),
		prefetch: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "stream",
				Name:      "prefetch_lookups_total",
				Help:      "Blocks requested by readers, by whether read-ahead had fetched them",
			},
			[]string{"result"},
		),
		backpressure: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "stream",
				Name:      "backpressure_waits_total",
				Help:      "Total number of times a writer waited for outstanding write-backs",
			},
		),
	}
}

func (m *streamMetrics) ObserveStreamOp(direction string, bytes int, duration time.Duration) {
	m.streamOps.WithLabelValues(direction).Inc()
	m.streamBytes.WithLabelValues(direction).Add(float64(bytes))
	m.streamDuration.WithLabelValues(direction).Observe(duration.Seconds())
}

func (m *streamMetrics) ObserveProtocolOp(direction string, bytes int, duration time.Duration, err error) {
	m.protocolOps.WithLabelValues(direction, result(err)).Inc()
	m.protocolBytes.WithLabelValues(direction).Add(float64(bytes))
	m.protocolDuration.WithLabelValues(direction).Observe(duration.Seconds())
}

func (m *streamMetrics) RecordPrefetch(hit bool) {
	if hit {
		m.prefetch.WithLabelValues("hit").Inc()
		return
	}
	m.prefetch.WithLabelValues("miss").Inc()
}

func (m *streamMetrics) RecordBackpressure() {
	m.backpressure.Inc()
}
