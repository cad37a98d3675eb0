package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	require.Equal(t, ":8008", cfg.Server.Addr)
	require.Equal(t, 20, cfg.Client.PageSize)
	require.Equal(t, 2*time.Minute, cfg.Client.ResyncInterval)
	require.Equal(t, 500*time.Millisecond, cfg.Client.ReconnectBase)
}

func TestLoad_FileAndEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := "server:\n  addr: \":9000\"\n  rate_limit: 5\nclient:\n  page_size: 50\n  reconnect_max: 1m\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	t.Setenv("TM_CLIENT_USERNAME", "alice")
	t.Setenv("TM_SERVER_ADDR", ":9100")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, ":9100", cfg.Server.Addr)
	require.Equal(t, 5.0, cfg.Server.RateLimit)
	require.Equal(t, 50, cfg.Client.PageSize)
	require.Equal(t, time.Minute, cfg.Client.ReconnectMax)
	require.Equal(t, "alice", cfg.Client.Username)
}

func TestLoad_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("client:\n  page_size: 0\n"), 0o600))
	_, err := Load(path)
	require.Error(t, err)

	require.NoError(t, os.WriteFile(path, []byte("client:\n  page_size: 120\n"), 0o600))
	_, err = Load(path)
	require.ErrorContains(t, err, "page_size")

	require.NoError(t, os.WriteFile(path, []byte("server: [not a map"), 0o600))
	_, err = Load(path)
	require.Error(t, err)
}
