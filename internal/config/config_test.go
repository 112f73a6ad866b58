package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finsight/broker_gateway/internal/config"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, "server:\n  port: 9000\n")

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "paper", cfg.Broker.Mode)
	assert.Equal(t, "ws", cfg.Broker.Transport)
	assert.Equal(t, 100000.0, cfg.Paper.StartingCash)
	assert.Equal(t, 60, cfg.Confirm.TTLMinutes)
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	path := writeConfig(t, "broker:\n  mode: paper\n  ws_endpoint: ws://from-yaml/mcp\n")

	t.Setenv("BROKER_ENV", "live")
	t.Setenv("MCP_BROKER_URL", "ws://from-env/mcp")

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, "live", cfg.Broker.Mode)
	assert.Equal(t, "ws://from-env/mcp", cfg.Broker.WSEndpoint)
}

func TestLoadRejectsBadMode(t *testing.T) {
	path := writeConfig(t, "broker:\n  mode: dryrun\n")

	_, err := config.Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broker.mode")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}
