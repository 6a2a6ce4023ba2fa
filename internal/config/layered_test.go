package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/island-mesh/island/internal/constants"
	"github.com/island-mesh/island/internal/testutil"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLayeredLoader_DefaultsOnly(t *testing.T) {
	loader := NewLayeredLoader("/home/op")
	loader.DisableLayer(LayerFile)
	loader.DisableLayer(LayerEnv)

	cfg, err := loader.Load("")
	require.NoError(t, err)

	assert.Equal(t, SchemaVersion, cfg.Version)
	assert.Equal(t, filepath.Join("/home/op", constants.DefaultDir), cfg.DataDir)
	assert.Equal(t, constants.DefaultServerPort, cfg.Server.Port)
	assert.Equal(t, "unset", cfg.Mode.Initial)
	assert.Equal(t, "0.0.0.0:5000", cfg.ListenAddress())
	assert.Equal(t, filepath.Join("/home/op", ".island", "island.duckdb"), cfg.DatabasePath())
	assert.Equal(t, filepath.Join("/home/op", ".island", "tokens.yaml"), cfg.TokensPath())
	assert.NoError(t, cfg.Validate())
}

func TestLayeredLoader_Precedence(t *testing.T) {
	path := writeConfig(t, `
data_dir: /var/lib/island
log:
  level: debug
server:
  port: 6000
  host: 127.0.0.1
mode:
  initial: ransomware
auth:
  tokens_file: /etc/island/tokens.yaml
`)

	t.Run("file overrides defaults", func(t *testing.T) {
		loader := NewLayeredLoader(t.TempDir())
		loader.DisableLayer(LayerEnv)

		cfg, err := loader.Load(path)
		require.NoError(t, err)
		assert.Equal(t, "/var/lib/island", cfg.DataDir)
		assert.Equal(t, "debug", cfg.Log.Level)
		assert.Equal(t, 6000, cfg.Server.Port)
		assert.Equal(t, "ransomware", cfg.Mode.Initial)
		assert.Equal(t, "/etc/island/tokens.yaml", cfg.TokensPath())
		assert.Equal(t, constants.DefaultReadHeaderTimeout, cfg.Server.ReadHeaderTimeout, "unset keys keep defaults")
	})

	t.Run("env overrides file", func(t *testing.T) {
		t.Setenv("ISLAND_SERVER_PORT", "7000")
		t.Setenv("ISLAND_MODE", "advanced")
		t.Setenv("ISLAND_PLUGINS_INDEX_TTL", "5m")
		t.Setenv("ISLAND_LOG_PRETTY", "true")

		cfg, err := NewLayeredLoader(t.TempDir()).Load(path)
		require.NoError(t, err)
		assert.Equal(t, 7000, cfg.Server.Port)
		assert.Equal(t, "advanced", cfg.Mode.Initial)
		assert.Equal(t, 5*time.Minute, cfg.Plugins.IndexTTL)
		assert.True(t, cfg.Log.Pretty)
		assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	})

	t.Run("flags override env", func(t *testing.T) {
		t.Setenv("ISLAND_SERVER_PORT", "7000")

		fs := pflag.NewFlagSet("serve", pflag.ContinueOnError)
		BindFlags(fs)
		require.NoError(t, fs.Parse([]string{"--port", "8443", "--initial-mode", "unset", "--read-header-timeout", "3s"}))

		cfg, err := NewLayeredLoader(t.TempDir()).WithFlags(fs).Load(path)
		require.NoError(t, err)
		assert.Equal(t, 8443, cfg.Server.Port)
		assert.Equal(t, "unset", cfg.Mode.Initial)
		assert.Equal(t, 3*time.Second, cfg.Server.ReadHeaderTimeout)
		assert.Equal(t, "127.0.0.1", cfg.Server.Host, "unchanged flags do not override")
	})
}

func TestLayeredLoader_Errors(t *testing.T) {
	t.Run("missing file is fine", func(t *testing.T) {
		_, err := NewLayeredLoader(t.TempDir()).Load(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.NoError(t, err)
	})

	t.Run("empty file is fine", func(t *testing.T) {
		_, err := NewLayeredLoader(t.TempDir()).Load(writeConfig(t, ""))
		assert.NoError(t, err)
	})

	t.Run("unknown key", func(t *testing.T) {
		_, err := NewLayeredLoader(t.TempDir()).Load(writeConfig(t, "agent_id: x\n"))
		assert.ErrorContains(t, err, "failed to load config from file")
	})

	t.Run("bad env value", func(t *testing.T) {
		t.Setenv("ISLAND_SERVER_PORT", "http")
		_, err := NewLayeredLoader(t.TempDir()).Load("")
		assert.ErrorContains(t, err, "ISLAND_SERVER_PORT")
	})
}

func TestLoader_SaveLoad(t *testing.T) {
	base := t.TempDir()
	loader := NewLoaderAt(base)
	loader.Layers().DisableLayer(LayerEnv)

	cfg := DefaultIslandConfig(base)
	cfg.Server.Port = 5443
	cfg.Island.HostnameOverride = "Island"
	require.NoError(t, loader.Save(cfg, testutil.NewTestLogger(t)))

	st, err := os.Stat(loader.ConfigPath())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), st.Mode().Perm())

	loaded, err := loader.Load()
	require.NoError(t, err)
	assert.Equal(t, 5443, loaded.Server.Port)
	assert.Equal(t, "Island", loaded.Island.HostnameOverride)
}

func TestNewLoader_ConfigEnv(t *testing.T) {
	base := t.TempDir()
	t.Setenv("ISLAND_CONFIG", base)
	assert.Equal(t, filepath.Join(base, ".island", "config.yaml"), NewLoader().ConfigPath())
}

func TestEnvVars(t *testing.T) {
	vars := EnvVars(DefaultIslandConfig(""))
	assert.Contains(t, vars, "ISLAND_DATA_DIR")
	assert.Contains(t, vars, "ISLAND_LOG_LEVEL")
	assert.Contains(t, vars, "ISLAND_TLS_CERT_FILE")
	assert.Contains(t, vars, "ISLAND_PLUGINS_REPOSITORY_URL")
}
