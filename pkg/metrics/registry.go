// Package metrics provides Prometheus collectors for the gateway components.
//
// Metrics are optional: until InitRegistry is called every constructor
// returns nil, and components fall back to their built-in no-op
// implementations.
//
// Usage:
//
//	metrics.InitRegistry()
//	client, err := transport.New(config, metrics.NewTransportMetrics())
//	cache := handlecache.New(size, metrics.NewHandleCacheMetrics())
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "nfsgate"

var (
	// registry is written once by InitRegistry.
	registry     *prometheus.Registry
	registryOnce sync.Once
)

// InitRegistry initializes the global Prometheus registry. Safe to call more
// than once; later calls are ignored.
func InitRegistry() {
	registryOnce.Do(func() {
		registry = prometheus.NewRegistry()
		registry.MustRegister(
			prometheus.NewGoCollector(),
			prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		)
	})
}

// GetRegistry returns the global registry, or nil when metrics are disabled.
func GetRegistry() *prometheus.Registry {
	return registry
}

// IsEnabled reports whether InitRegistry has been called.
func IsEnabled() bool {
	return GetRegistry() != nil
}
