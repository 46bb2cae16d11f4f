package config

import (
	"context"
	"fmt"

	"github.com/marmos91/nfsgate/internal/logger"
	"github.com/marmos91/nfsgate/internal/protocol/rpc"
	"github.com/marmos91/nfsgate/pkg/filesystem"
	"github.com/marmos91/nfsgate/pkg/handlecache"
	"github.com/marmos91/nfsgate/pkg/store"
	"github.com/marmos91/nfsgate/pkg/store/memory"
	"github.com/marmos91/nfsgate/pkg/store/nfs3"
	"github.com/marmos91/nfsgate/pkg/stream"
	"github.com/marmos91/nfsgate/pkg/transport"
	"github.com/mitchellh/mapstructure"
)

// Credentials returns the RPC credentials selected by the auth section.
func (cfg *Config) Credentials() rpc.Credentials {
	if cfg.Auth.Flavor == "none" {
		return rpc.NullAuth{}
	}
	auth := rpc.NewUnixAuth(cfg.Auth.UID, cfg.Auth.GID, cfg.Auth.GIDs...)
	if cfg.Auth.MachineName != "" {
		auth.MachineName = cfg.Auth.MachineName
	}
	return auth
}

// TransportConfig converts the transport section. Address is left empty;
// the store fills it in per connection.
func (cfg *Config) TransportConfig() transport.Config {
	t := cfg.Transport
	return transport.Config{
		DialTimeout:    t.DialTimeout,
		CallTimeout:    t.CallTimeout,
		MaxRetries:     t.MaxRetries,
		ReconnectDelay: t.ReconnectDelay,
		IdleTick:       t.IdleTick,
		MaxRecordSize:  t.MaxRecordSize,
		RateLimit:      t.RateLimit,
		RateBurst:      t.RateBurst,
	}
}

// StreamOptions converts the stream section.
func (cfg *Config) StreamOptions() stream.Options {
	s := cfg.Stream
	return stream.Options{
		BlockBits:        s.BlockBits,
		DisablePrefetch:  s.DisablePrefetch,
		PrefetchWorkers:  s.PrefetchWorkers,
		CachedBlocks:     s.CachedBlocks,
		SplitBits:        s.SplitBits,
		MaxFetchRetries:  s.MaxFetchRetries,
		FetchBackoff:     s.FetchBackoff,
		WriteWorkers:     s.WriteWorkers,
		MaxOngoingWrites: s.MaxOngoingWrites,
		CloseTimeout:     s.CloseTimeout,
	}
}

// FilesystemConfig combines the auth, files and stream sections.
func (cfg *Config) FilesystemConfig() filesystem.Config {
	return filesystem.Config{
		UID:      cfg.Auth.UID,
		GID:      cfg.Auth.GID,
		FileMode: cfg.Files.FileMode,
		DirMode:  cfg.Files.DirMode,
		Stream:   cfg.StreamOptions(),
	}
}

// CreateStore creates the store selected by store.type.
//
// Supported types:
//   - "nfs3": mounts server.export on server.host
//   - "memory": an empty in-process filesystem
func CreateStore(ctx context.Context, cfg *Config, metrics transport.Metrics) (store.Store, error) {
	switch cfg.Store.Type {
	case StoreNFS3:
		st, err := nfs3.Dial(ctx, nfs3.DialConfig{
			Host:        cfg.Server.Host,
			Export:      cfg.Server.Export,
			NFSPort:     cfg.Server.NFSPort,
			MountPort:   cfg.Server.MountPort,
			PortmapPort: cfg.Server.PortmapPort,
			Transport:   cfg.TransportConfig(),
			Credentials: cfg.Credentials(),
		}, metrics)
		if err != nil {
			return nil, err
		}
		return st, nil
	case StoreMemory:
		st, err := createMemoryStore(cfg.Store.Memory)
		if err != nil {
			return nil, err
		}
		return st, nil
	default:
		return nil, fmt.Errorf("unknown store type: %q", cfg.Store.Type)
	}
}

func createMemoryStore(options map[string]any) (*memory.Store, error) {
	var storeCfg memory.Config
	if err := decodeOptions(options, &storeCfg); err != nil {
		return nil, fmt.Errorf("invalid memory store config: %w", err)
	}
	logger.Debug("Creating memory store: %+v", storeCfg)
	return memory.New(storeCfg), nil
}

// decodeOptions decodes a store option map, accepting duration strings such
// as "5s" for time.Duration fields. Unknown keys are errors.
func decodeOptions(options map[string]any, out any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:  mapstructure.StringToTimeDurationHookFunc(),
		ErrorUnused: true,
		Result:      out,
	})
	if err != nil {
		return err
	}
	return decoder.Decode(options)
}

// CreateFileSystem creates the store, the handle cache and the filesystem
// layer on top of them. The filesystem owns the store; closing it closes the
// store.
func CreateFileSystem(ctx context.Context, cfg *Config, metrics *MetricsResult) (*filesystem.FileSystem, error) {
	if metrics == nil {
		metrics = &MetricsResult{}
	}

	st, err := CreateStore(ctx, cfg, metrics.Transport)
	if err != nil {
		return nil, err
	}

	cache := handlecache.New(cfg.Cache.HandleCacheSize, metrics.HandleCache)
	fsys, err := filesystem.New(ctx, st, cache, cfg.FilesystemConfig(), metrics.Stream)
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	return fsys, nil
}
