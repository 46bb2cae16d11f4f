package metrics

import (
	"github.com/marmos91/nfsgate/pkg/handlecache"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type handleCacheMetrics struct {
	lookups   *prometheus.CounterVec
	evictions prometheus.Counter
	size      prometheus.Gauge
}

// NewHandleCacheMetrics returns handle cache collectors registered on the
// global registry, or nil when metrics are disabled.
func NewHandleCacheMetrics() handlecache.Metrics {
	if !IsEnabled() {
		return nil
	}
	return newHandleCacheMetrics(GetRegistry())
}

func newHandleCacheMetrics(reg prometheus.Registerer) *handleCacheMetrics {
	return &handleCacheMetrics{
		lookups: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "handle_cache",
				Name:      "lookups_total",
				Help:      "Total number of handle cache lookups by result",
			},
			[]string{"result"},
		),
		evictions: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "handle_cache",
				Name:      "evictions_total",
				Help:      "Total number of entries evicted to stay within capacity",
			},
		),
		size: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "handle_cache",
				Name:      "entries",
				Help:      "Current number of cached handles",
			},
		),
	}
}

func (m *handleCacheMetrics) RecordLookup(hit bool) {
	if hit {
		m.lookups.WithLabelValues("hit").Inc()
		return
	}
	m.lookups.WithLabelValues("miss").Inc()
}

func (m *handleCacheMetrics) RecordEviction() {
	m.evictions.Inc()
}

func (m *handleCacheMetrics) SetSize(entries int) {
	m.size.Set(float64(entries))
}
