package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrConfigExists is returned by InitConfig when a file exists and force is
// not set.
var ErrConfigExists = errors.New("config file already exists")

const fileHeader = `nfsgate configuration file

Every value can be overridden with an NFSGATE_ environment variable,
e.g. NFSGATE_SERVER_HOST or NFSGATE_TRANSPORT_CALL_TIMEOUT.`

// InitConfig writes the default configuration to the default location and
// returns its path.
func InitConfig(force bool) (string, error) {
	path := GetDefaultConfigPath()
	if err := InitConfigToPath(path, force); err != nil {
		return "", err
	}
	return path, nil
}

// InitConfigToPath writes the default configuration to path, creating parent
// directories as needed.
func InitConfigToPath(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%w: %s (use --force to overwrite)", ErrConfigExists, path)
		}
	}

	data, err := GenerateYAML(GetDefaultConfig())
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// field is one commented key of a generated mapping.
type field struct {
	key     string
	comment string
	value   any
}

// GenerateYAML renders cfg as a commented YAML document that Load accepts.
func GenerateYAML(cfg *Config) ([]byte, error) {
	doc, err := mapping(
		field{"logging", "Log level (DEBUG, INFO, WARN, ERROR), format (text, json) and output (stdout, stderr, file path).", section{
			field{"level", "", cfg.Logging.Level},
			field{"format", "", cfg.Logging.Format},
			field{"output", "", cfg.Logging.Output},
		}},
		field{"server", "NFS server and export. Ports left at 0 are resolved through the portmapper.", section{
			field{"host", "", cfg.Server.Host},
			field{"export", "", cfg.Server.Export},
			field{"nfs_port", "", cfg.Server.NFSPort},
			field{"mount_port", "", cfg.Server.MountPort},
			field{"portmap_port", "", cfg.Server.PortmapPort},
		}},
		field{"auth", "RPC credentials: none (AUTH_NONE) or unix (AUTH_SYS).", section{
			field{"flavor", "", cfg.Auth.Flavor},
			field{"uid", "", cfg.Auth.UID},
			field{"gid", "", cfg.Auth.GID},
			field{"machine_name", "Defaults to the local hostname.", cfg.Auth.MachineName},
		}},
		field{"transport", "RPC transport. A call gets max_retries attempts of call_timeout each.", section{
			field{"dial_timeout", "", cfg.Transport.DialTimeout},
			field{"call_timeout", "", cfg.Transport.CallTimeout},
			field{"max_retries", "", cfg.Transport.MaxRetries},
			field{"reconnect_delay", "", cfg.Transport.ReconnectDelay},
			field{"idle_tick", "", cfg.Transport.IdleTick},
			field{"max_record_size", "0 selects the built-in limit.", cfg.Transport.MaxRecordSize},
			field{"rate_limit", "Calls per second, 0 disables pacing.", cfg.Transport.RateLimit},
			field{"rate_burst", "", cfg.Transport.RateBurst},
		}},
		field{"cache", "LRU cache of path to file handle.", section{
			field{"handle_cache_size", "", cfg.Cache.HandleCacheSize},
		}},
		field{"stream", "Read and write streams. Sizes are powers of two given as bit counts.", section{
			field{"block_bits", "Block size, reduced to fit the server's rtmax/wtmax.", cfg.Stream.BlockBits},
			field{"split_bits", "Read-ahead never runs further than 2^split_bits bytes past a seek.", cfg.Stream.SplitBits},
			field{"disable_prefetch", "", cfg.Stream.DisablePrefetch},
			field{"prefetch_workers", "", cfg.Stream.PrefetchWorkers},
			field{"cached_blocks", "", cfg.Stream.CachedBlocks},
			field{"max_fetch_retries", "", cfg.Stream.MaxFetchRetries},
			field{"fetch_backoff", "", cfg.Stream.FetchBackoff},
			field{"write_workers", "", cfg.Stream.WriteWorkers},
			field{"max_ongoing_writes", "Writers wait once this many blocks are being written back.", cfg.Stream.MaxOngoingWrites},
			field{"close_timeout", "", cfg.Stream.CloseTimeout},
		}},
		field{"files", "Permission bits of created files and directories.", section{
			field{"file_mode", "", octal(cfg.Files.FileMode)},
			field{"dir_mode", "", octal(cfg.Files.DirMode)},
		}},
		field{"store", "Store type: nfs3 (talks to server) or memory (in-process, for testing).", section{
			field{"type", "", cfg.Store.Type},
			field{"memory", "", cfg.Store.Memory},
		}},
		field{"metrics", "Prometheus endpoint served at http://<address>/metrics.", section{
			field{"enabled", "", cfg.Metrics.Enabled},
			field{"address", "", cfg.Metrics.Address},
		}},
	)
	if err != nil {
		return nil, err
	}
	doc.HeadComment = fileHeader

	var buf bytes.Buffer
	encoder := yaml.NewEncoder(&buf)
	encoder.SetIndent(2)
	if err := encoder.Encode(&yaml.Node{Kind: yaml.DocumentNode, Content: []*yaml.Node{doc}}); err != nil {
		return nil, fmt.Errorf("failed to encode config: %w", err)
	}
	if err := encoder.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// octal renders permission bits as 0o755.
type octal uint32

// section defers building a nested mapping so that errors surface from the
// enclosing mapping call.
type section []field

func mapping(fields ...field) (*yaml.Node, error) {
	node := &yaml.Node{Kind: yaml.MappingNode}
	for _, f := range fields {
		value, err := valueNode(f.value)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", f.key, err)
		}
		key := &yaml.Node{Kind: yaml.ScalarNode, Value: f.key, HeadComment: f.comment}
		node.Content = append(node.Content, key, value)
	}
	return node, nil
}

func valueNode(value any) (*yaml.Node, error) {
	switch v := value.(type) {
	case section:
		return mapping(v...)
	case octal:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!int", Value: fmt.Sprintf("0o%o", uint32(v))}, nil
	case time.Duration:
		// yaml.v3 would write nanoseconds.
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: v.String()}, nil
	case map[string]any:
		keys := make([]string, 0, len(v))
		for key := range v {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		fields := make([]field, 0, len(keys))
		for _, key := range keys {
			fields = append(fields, field{key: key, value: v[key]})
		}
		return mapping(fields...)
	}

	node := &yaml.Node{}
	if err := node.Encode(value); err != nil {
		return nil, err
	}
	return node, nil
}
