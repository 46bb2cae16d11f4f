package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitConfigToPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	require.NoError(t, InitConfigToPath(path, false))

	err := InitConfigToPath(path, false)
	require.ErrorIs(t, err, ErrConfigExists)

	require.NoError(t, os.WriteFile(path, []byte("garbage"), 0o644))
	require.NoError(t, InitConfigToPath(path, true))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "localhost", cfg.Server.Host)
}

func TestInitConfig(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	path, err := InitConfig(false)
	require.NoError(t, err)
	assert.Equal(t, GetDefaultConfigPath(), path)
	assert.True(t, ConfigExists())

	_, err = InitConfig(false)
	assert.ErrorIs(t, err, ErrConfigExists)
}

func TestGenerateYAML(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Transport.CallTimeout = 1500 * time.Millisecond
	cfg.Files.DirMode = 0o750
	cfg.Metrics.Enabled = true

	data, err := GenerateYAML(cfg)
	require.NoError(t, err)
	out := string(data)

	assert.Contains(t, out, "# nfsgate configuration file")
	assert.Contains(t, out, "call_timeout: 1.5s")
	assert.Contains(t, out, "dir_mode: 0o750")
	assert.Contains(t, out, "# RPC transport.")
	assert.Contains(t, out, "max_read_size: 1048576")

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.Transport, loaded.Transport)
	assert.Equal(t, cfg.Stream, loaded.Stream)
	assert.Equal(t, cfg.Files, loaded.Files)
	assert.Equal(t, cfg.Server, loaded.Server)
	assert.Equal(t, cfg.Metrics, loaded.Metrics)
	assert.Equal(t, cfg.Logging, loaded.Logging)
}
