package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"conntree/internal/config"
	"conntree/internal/domain"
	"conntree/internal/services"
)

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := config.LoadConfig(filepath.Join(t.TempDir(), "none.yaml"))
	require.NoError(t, err)
	assert.Equal(t, config.DefaultConfig().Theme, cfg.Theme)
	assert.True(t, cfg.OpenFromLastSession)
}

func TestLoadConfig_MergesOnlyPresentFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
no_reconnect: true
theme: purple
external_tools:
  - name: Nmap
    command: nmap
    args: ["-p", "%PORT%", "%HOSTNAME%"]
clients:
  ssh2:
    name: ssh
    command: ssh
  teleport:
    name: tsh
    command: tsh
`), 0o600))

	cfg, err := config.LoadConfig(path)
	require.NoError(t, err)

	assert.True(t, cfg.NoReconnect)
	assert.True(t, cfg.OpenFromLastSession)
	assert.Equal(t, "dark", cfg.Theme)
	require.Len(t, cfg.ExternalTools, 1)
	tool, ok := cfg.ExternalTool("nmap")
	require.True(t, ok)
	assert.Equal(t, []string{"-p", "%PORT%", "%HOSTNAME%"}, tool.Args)

	clients := cfg.ClientTools()
	assert.Len(t, clients, 1)
	assert.Equal(t, "ssh", clients[domain.ProtocolSSH2].Command)
}

func TestLoadConfig_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("theme: [unclosed"), 0o600))

	_, err := config.LoadConfig(path)
	assert.Error(t, err)
}

func TestSaveConfig_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := config.DefaultConfig()
	cfg.Theme = "light"
	cfg.ExternalTools = []services.ExternalTool{{Name: "Ping", Command: "ping"}}

	require.NoError(t, config.SaveConfig(path, cfg))
	loaded, err := config.LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "light", loaded.Theme)
	assert.Equal(t, cfg.ExternalTools, loaded.ExternalTools)
}

func TestXDGDirs(t *testing.T) {
	base := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(base, "config"))
	t.Setenv("XDG_STATE_HOME", filepath.Join(base, "state"))

	assert.Equal(t, filepath.Join(base, "config", "conntree", "config.yaml"), config.ConfigPath())
	assert.Equal(t, filepath.Join(base, "state", "conntree"), config.StateDir())
}

func TestFlags_ApplyOnlyChanged(t *testing.T) {
	flags := pflag.NewFlagSet("conntree", pflag.ContinueOnError)
	bound := config.BindFlags(flags)
	require.NoError(t, flags.Parse([]string{"--no-reconnect", "--theme", "light"}))

	base := config.DefaultConfig()
	base.ConnectionsFile = "/srv/connections.json"
	cfg := bound.Apply(flags, base)

	assert.True(t, cfg.NoReconnect)
	assert.Equal(t, "light", cfg.Theme)
	assert.Equal(t, "/srv/connections.json", cfg.ConnectionsFile)
	assert.Equal(t, base.LogLevel, cfg.LogLevel)
}
