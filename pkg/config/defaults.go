package config

import (
	"strings"

	"github.com/marmos91/nfsgate/internal/protocol/mount"
	"github.com/marmos91/nfsgate/pkg/filesystem"
	"github.com/marmos91/nfsgate/pkg/handlecache"
	"github.com/marmos91/nfsgate/pkg/metrics"
	"github.com/marmos91/nfsgate/pkg/stream"
	"github.com/marmos91/nfsgate/pkg/transport"
)

// ApplyDefaults fills zero fields with their defaults. Explicit values are
// preserved.
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyServerDefaults(&cfg.Server)
	applyAuthDefaults(&cfg.Auth)
	applyTransportDefaults(&cfg.Transport)
	applyCacheDefaults(&cfg.Cache)
	applyStreamDefaults(&cfg.Stream)
	applyFilesDefaults(&cfg.Files)
	applyStoreDefaults(&cfg.Store)
	applyMetricsDefaults(&cfg.Metrics)
}

func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

func applyServerDefaults(cfg *ServerConfig) {
	if cfg.Export == "" {
		cfg.Export = "/"
	}
	if cfg.PortmapPort == 0 {
		cfg.PortmapPort = mount.PortmapPort
	}
}

func applyAuthDefaults(cfg *AuthConfig) {
	if cfg.Flavor == "" {
		cfg.Flavor = "unix"
	}
	cfg.Flavor = strings.ToLower(cfg.Flavor)
}

func applyTransportDefaults(cfg *TransportConfig) {
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = transport.DefaultDialTimeout
	}
	if cfg.CallTimeout == 0 {
		cfg.CallTimeout = transport.DefaultCallTimeout
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = transport.DefaultMaxRetries
	}
	if cfg.ReconnectDelay == 0 {
		cfg.ReconnectDelay = transport.DefaultReconnectDelay
	}
	if cfg.IdleTick == 0 {
		cfg.IdleTick = transport.DefaultIdleTick
	}
}

func applyCacheDefaults(cfg *CacheConfig) {
	if cfg.HandleCacheSize == 0 {
		cfg.HandleCacheSize = handlecache.DefaultCapacity
	}
}

func applyStreamDefaults(cfg *StreamConfig) {
	defaults := stream.DefaultOptions()

	if cfg.BlockBits == 0 {
		cfg.BlockBits = defaults.BlockBits
	}
	if cfg.SplitBits == 0 {
		cfg.SplitBits = defaults.SplitBits
	}
	if cfg.PrefetchWorkers == 0 {
		cfg.PrefetchWorkers = defaults.PrefetchWorkers
	}
	if cfg.CachedBlocks == 0 {
		cfg.CachedBlocks = defaults.CachedBlocks
	}
	if cfg.MaxFetchRetries == 0 {
		cfg.MaxFetchRetries = defaults.MaxFetchRetries
	}
	if cfg.FetchBackoff == 0 {
		cfg.FetchBackoff = defaults.FetchBackoff
	}
	if cfg.WriteWorkers == 0 {
		cfg.WriteWorkers = defaults.WriteWorkers
	}
	if cfg.MaxOngoingWrites == 0 {
		cfg.MaxOngoingWrites = defaults.MaxOngoingWrites
	}
	if cfg.CloseTimeout == 0 {
		cfg.CloseTimeout = defaults.CloseTimeout
	}
}

func applyFilesDefaults(cfg *FilesConfig) {
	if cfg.FileMode == 0 {
		cfg.FileMode = filesystem.DefaultFileMode
	}
	if cfg.DirMode == 0 {
		cfg.DirMode = filesystem.DefaultDirMode
	}
}

func applyStoreDefaults(cfg *StoreConfig) {
	if cfg.Type == "" {
		cfg.Type = StoreNFS3
	}
	if cfg.Memory == nil {
		cfg.Memory = make(map[string]any)
	}
	if _, ok := cfg.Memory["max_read_size"]; !ok {
		cfg.Memory["max_read_size"] = uint32(1 << 20)
	}
	if _, ok := cfg.Memory["max_write_size"]; !ok {
		cfg.Memory["max_write_size"] = uint32(1 << 20)
	}
}

func applyMetricsDefaults(cfg *MetricsConfig) {
	if cfg.Address == "" {
		cfg.Address = metrics.DefaultListenAddress
	}
}

// GetDefaultConfig returns a configuration with every default applied. Used
// to generate the initial config file.
func GetDefaultConfig() *Config {
	cfg := &Config{
		Server: ServerConfig{
			Host:   "localhost",
			Export: "/export",
		},
	}
	ApplyDefaults(cfg)
	return cfg
}
