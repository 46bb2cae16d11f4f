// Package config loads the gateway configuration.
//
// Configuration sources, highest precedence first:
//  1. CLI flags
//  2. Environment variables (NFSGATE_*)
//  3. Configuration file (YAML)
//  4. Default values
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Store types.
const (
	StoreNFS3   = "nfs3"
	StoreMemory = "memory"
)

// Config is the complete gateway configuration.
type Config struct {
	Logging LoggingConfig `mapstructure:"logging"`

	// Server locates the NFSv3 server. Only used by the nfs3 store.
	Server ServerConfig `mapstructure:"server"`

	// Auth selects the RPC credentials sent with every call.
	Auth AuthConfig `mapstructure:"auth"`

	Transport TransportConfig `mapstructure:"transport"`

	Cache CacheConfig `mapstructure:"cache"`

	Stream StreamConfig `mapstructure:"stream"`

	// Files sets the ownership bits of created files and directories.
	Files FilesConfig `mapstructure:"files"`

	Store StoreConfig `mapstructure:"store"`

	Metrics MetricsConfig `mapstructure:"metrics"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level: DEBUG, INFO, WARN or ERROR
	// (case-insensitive, normalized to uppercase).
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error"`

	// Format is text or json.
	Format string `mapstructure:"format" validate:"required,oneof=text json"`

	// Output is stdout, stderr, or a file path.
	Output string `mapstructure:"output" validate:"required"`
}

// ServerConfig locates the NFS server and the export to mount.
type ServerConfig struct {
	Host string `mapstructure:"host"`

	// Export is the path passed to MNT.
	Export string `mapstructure:"export" validate:"omitempty,startswith=/"`

	// NFSPort and MountPort skip the portmapper when set.
	NFSPort   int `mapstructure:"nfs_port" validate:"gte=0,lte=65535"`
	MountPort int `mapstructure:"mount_port" validate:"gte=0,lte=65535"`

	PortmapPort int `mapstructure:"portmap_port" validate:"gte=0,lte=65535"`
}

// AuthConfig selects the RPC credential flavor.
type AuthConfig struct {
	// Flavor is none (AUTH_NONE) or unix (AUTH_SYS).
	Flavor string `mapstructure:"flavor" validate:"required,oneof=none unix"`

	UID  uint32   `mapstructure:"uid"`
	GID  uint32   `mapstructure:"gid"`
	GIDs []uint32 `mapstructure:"gids" validate:"max=16"`

	// MachineName defaults to the local hostname.
	MachineName string `mapstructure:"machine_name" validate:"max=255"`
}

// TransportConfig tunes the RPC transport.
type TransportConfig struct {
	DialTimeout    time.Duration `mapstructure:"dial_timeout" validate:"gt=0"`
	CallTimeout    time.Duration `mapstructure:"call_timeout" validate:"gt=0"`
	MaxRetries     int           `mapstructure:"max_retries" validate:"gte=1"`
	ReconnectDelay time.Duration `mapstructure:"reconnect_delay" validate:"gt=0"`
	IdleTick       time.Duration `mapstructure:"idle_tick" validate:"gt=0"`

	// MaxRecordSize bounds a reassembled reply in bytes.
	MaxRecordSize int `mapstructure:"max_record_size" validate:"gte=0"`

	// RateLimit caps call attempts per second; 0 disables pacing.
	RateLimit uint `mapstructure:"rate_limit"`
	RateBurst uint `mapstructure:"rate_burst"`
}

// CacheConfig sizes the path to handle cache.
type CacheConfig struct {
	HandleCacheSize int `mapstructure:"handle_cache_size" validate:"gte=1"`
}

// StreamConfig tunes read and write streams.
type StreamConfig struct {
	BlockBits        uint          `mapstructure:"block_bits" validate:"gte=1,lte=24"`
	SplitBits        uint          `mapstructure:"split_bits" validate:"gte=1,lte=62"`
	DisablePrefetch  bool          `mapstructure:"disable_prefetch"`
	PrefetchWorkers  int           `mapstructure:"prefetch_workers" validate:"gte=1,lte=512"`
	CachedBlocks     int           `mapstructure:"cached_blocks" validate:"gte=1"`
	MaxFetchRetries  int           `mapstructure:"max_fetch_retries" validate:"gte=1"`
	FetchBackoff     time.Duration `mapstructure:"fetch_backoff" validate:"gt=0"`
	WriteWorkers     int           `mapstructure:"write_workers" validate:"gte=1,lte=256"`
	MaxOngoingWrites int           `mapstructure:"max_ongoing_writes" validate:"gte=1"`
	CloseTimeout     time.Duration `mapstructure:"close_timeout" validate:"gt=0"`
}

// FilesConfig holds permission bits of created objects.
type FilesConfig struct {
	FileMode uint32 `mapstructure:"file_mode" validate:"gt=0,lte=4095"`
	DirMode  uint32 `mapstructure:"dir_mode" validate:"gt=0,lte=4095"`
}

// StoreConfig selects the store implementation. Only the section matching
// Type is used.
type StoreConfig struct {
	// Type is nfs3 or memory.
	Type string `mapstructure:"type" validate:"required,oneof=nfs3 memory"`

	// Memory holds memory.Config options.
	Memory map[string]any `mapstructure:"memory"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`

	// Address is the host:port of the metrics listener.
	Address string `mapstructure:"address" validate:"required_if=Enabled true"`
}

// FlagBindings maps configuration keys to the CLI flags that override them.
var FlagBindings = map[string]string{
	"logging.level":   "log-level",
	"server.host":     "host",
	"server.export":   "export",
	"store.type":      "store",
	"metrics.enabled": "metrics",
	"metrics.address": "metrics-address",
}

// Load reads configuration from configPath (or the default location when
// empty), the environment and defaults, then validates it.
func Load(configPath string) (*Config, error) {
	return LoadWithFlags(configPath, nil)
}

// LoadWithFlags is Load with the flags named in FlagBindings taking
// precedence over every other source when set on the command line.
func LoadWithFlags(configPath string, flags *pflag.FlagSet) (*Config, error) {
	if configPath != "" {
		if _, err := os.Stat(configPath); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v := viper.New()
	setupViper(v, configPath)
	if flags != nil {
		if err := bindFlags(v, flags); err != nil {
			return nil, err
		}
	}

	if err := readConfigFile(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

func setupViper(v *viper.Viper, configPath string) {
	// NFSGATE_SERVER_HOST overrides server.host.
	v.SetEnvPrefix("NFSGATE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// AutomaticEnv only applies to keys viper knows about.
	for _, key := range envKeys {
		_ = v.BindEnv(key)
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
		return
	}
	v.AddConfigPath(getConfigDir())
	v.SetConfigName("config")
	v.SetConfigType("yaml")
}

func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	for key, name := range FlagBindings {
		flag := flags.Lookup(name)
		if flag == nil {
			continue
		}
		if err := v.BindPFlag(key, flag); err != nil {
			return fmt.Errorf("failed to bind flag --%s: %w", name, err)
		}
	}
	return nil
}

var envKeys = []string{
	"logging.level", "logging.format", "logging.output",
	"server.host", "server.export", "server.nfs_port", "server.mount_port", "server.portmap_port",
	"auth.flavor", "auth.uid", "auth.gid", "auth.machine_name",
	"transport.dial_timeout", "transport.call_timeout", "transport.max_retries",
	"transport.reconnect_delay", "transport.idle_tick", "transport.max_record_size",
	"transport.rate_limit", "transport.rate_burst",
	"cache.handle_cache_size",
	"stream.block_bits", "stream.split_bits", "stream.disable_prefetch",
	"stream.prefetch_workers", "stream.cached_blocks", "stream.max_fetch_retries",
	"stream.fetch_backoff", "stream.write_workers", "stream.max_ongoing_writes",
	"stream.close_timeout",
	"files.file_mode", "files.dir_mode",
	"store.type",
	"metrics.enabled", "metrics.address",
}

// readConfigFile reads the configuration file. A missing file at the default
// location is not an error.
func readConfigFile(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}
	return nil
}

// getConfigDir returns $XDG_CONFIG_HOME/nfsgate, ~/.config/nfsgate, or "."
// when no home directory is known.
func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "nfsgate")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "nfsgate")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// ConfigExists reports whether a config file exists at the default location.
func ConfigExists() bool {
	_, err := os.Stat(GetDefaultConfigPath())
	return err == nil
}

// GetConfigDir returns the configuration directory path.
func GetConfigDir() string {
	return getConfigDir()
}
