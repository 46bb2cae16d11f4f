package config

import (
	"github.com/marmos91/nfsgate/pkg/handlecache"
	"github.com/marmos91/nfsgate/pkg/metrics"
	"github.com/marmos91/nfsgate/pkg/stream"
	"github.com/marmos91/nfsgate/pkg/transport"
)

// MetricsResult holds the metrics components created from configuration.
// Every field is nil when metrics are disabled; components then fall back to
// no-op collectors.
type MetricsResult struct {
	// Server exposes the registry over HTTP.
	Server *metrics.Server

	Transport   transport.Metrics
	Stream      stream.Metrics
	HandleCache handlecache.Metrics
}

// InitializeMetrics initializes the global registry, binds the metrics
// listener and creates the collectors when metrics are enabled. It must be
// called at most once per process.
func InitializeMetrics(cfg *Config) (*MetricsResult, error) {
	if !cfg.Metrics.Enabled {
		return &MetricsResult{}, nil
	}

	metrics.InitRegistry()

	server, err := metrics.NewServer(metrics.ServerConfig{Address: cfg.Metrics.Address})
	if err != nil {
		return nil, err
	}

	return &MetricsResult{
		Server:      server,
		Transport:   metrics.NewTransportMetrics(),
		Stream:      metrics.NewStreamMetrics(),
		HandleCache: metrics.NewHandleCacheMetrics(),
	}, nil
}
