package metrics

import (
	"errors"
	"time"

	"github.com/marmos91/nfsgate/pkg/transport"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// transportMetrics is the Prometheus implementation of transport.Metrics.
type transportMetrics struct {
	calls        *prometheus.CounterVec
	callDuration *prometheus.HistogramVec
	retries      *prometheus.CounterVec
	timeouts     *prometheus.CounterVec
	reconnects   prometheus.Counter
	orphans      prometheus.Counter
	pending      prometheus.Gauge
}

// NewTransportMetrics returns RPC transport collectors registered on the
// global registry, or nil when metrics are disabled.
func NewTransportMetrics() transport.Metrics {
	if !IsEnabled() {
		return nil
	}
	return newTransportMetrics(GetRegistry())
}

func newTransportMetrics(reg prometheus.Registerer) *transportMetrics {
	return &transportMetrics{
		calls: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "rpc",
				Name:      "calls_total",
				Help:      "Total number of RPC calls by program, procedure and result",
			},
			[]string{"program", "procedure", "result"},
		),
		callDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "rpc",
				Name:      "call_duration_seconds",
				Help:      "Duration of RPC calls in seconds, retries included",
				Buckets: []float64{
					0.0005, // 500µs
					0.001,  // 1ms
					0.005,  // 5ms
					0.01,   // 10ms
					0.05,   // 50ms
					0.1,    // 100ms
					0.5,    // 500ms
					1,      // 1s
					10,     // 10s
					60,     // 1m
				},
			},
			[]string{"program", "procedure"},
		),
		retries: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "rpc",
				Name:      "retries_total",
				Help:      "Total number of RPC attempts abandoned after the call timeout",
			},
			[]string{"program", "procedure"},
		),
		timeouts: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "rpc",
				Name:      "timeouts_total",
				Help:      "Total number of RPC calls that exhausted their retries",
			},
			[]string{"program", "procedure"},
		),
		reconnects: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "rpc",
				Name:      "reconnects_total",
				Help:      "Total number of lost server connections",
			},
		),
		orphans: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "rpc",
				Name:      "orphan_replies_total",
				Help:      "Total number of replies whose xid matched no pending call",
			},
		),
		pending: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "rpc",
				Name:      "pending_calls",
				Help:      "Current number of calls awaiting a reply",
			},
		),
	}
}

func (m *transportMetrics) ObserveCall(program, procedure uint32, duration time.Duration, err error) {
	prog, proc := programName(program), procedureName(program, procedure)
	m.calls.WithLabelValues(prog, proc, result(err)).Inc()
	m.callDuration.WithLabelValues(prog, proc).Observe(duration.Seconds())
	if errors.Is(err, transport.ErrTimeout) {
		m.timeouts.WithLabelValues(prog, proc).Inc()
	}
}

func (m *transportMetrics) RecordRetry(program, procedure uint32) {
	m.retries.WithLabelValues(programName(program), procedureName(program, procedure)).Inc()
}

func (m *transportMetrics) RecordReconnect() {
	m.reconnects.Inc()
}

func (m *transportMetrics) RecordOrphanReply() {
	m.orphans.Inc()
}

func (m *transportMetrics) SetPending(n int) {
	m.pending.Set(float64(n))
}
