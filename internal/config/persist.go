package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"conntree/internal/domain"
	"conntree/internal/services"
)

const (
	appDirName     = "conntree"
	configFileName = "config.yaml"
)

func DefaultConfig() Config {
	return Config{
		ConnectionsFile:     filepath.Join(DataDir(), "connections.json"),
		PuttySessionsDir:    services.DefaultPuttyDir(),
		OpenFromLastSession: true,
		NoReconnect:         false,
		SwitchToOpen:        true,
		Theme:               "dark",
		LogLevel:            "info",
		LogFile:             filepath.Join(StateDir(), "conntree.log"),
		ExternalTools: []services.ExternalTool{
			{Name: "Ping", Command: "ping", Args: []string{"-c", "4", "%HOSTNAME%"}},
			{Name: "Traceroute", Command: "traceroute", Args: []string{"%HOSTNAME%"}},
		},
		Clients: map[string]services.ExternalTool{
			string(domain.ProtocolSSH2): {Name: "ssh", Command: "x-terminal-emulator", Args: []string{"-e", "ssh", "-p", "%PORT%", "%USERNAME%@%HOSTNAME%"}},
			string(domain.ProtocolRDP):  {Name: "xfreerdp", Command: "xfreerdp", Args: []string{"/v:%HOSTNAME%:%PORT%", "/u:%USERNAME%"}},
			string(domain.ProtocolVNC):  {Name: "vncviewer", Command: "vncviewer", Args: []string{"%HOSTNAME%::%PORT%"}},
		},
		KeyBindings: map[string]string{},
	}
}

func ConfigDir() string {
	return xdgDir("XDG_CONFIG_HOME", ".config")
}

func DataDir() string {
	return xdgDir("XDG_DATA_HOME", filepath.Join(".local", "share"))
}

func StateDir() string {
	return xdgDir("XDG_STATE_HOME", filepath.Join(".local", "state"))
}

func xdgDir(env, fallback string) string {
	if dir := os.Getenv(env); dir != "" {
		return filepath.Join(dir, appDirName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, fallback, appDirName)
}

func ConfigPath() string {
	dir := ConfigDir()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, configFileName)
}

// LoadConfig reads path over DefaultConfig. A missing file is not an error.
func LoadConfig(path string) (Config, error) {
	config := DefaultConfig()
	if path == "" {
		return config, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return config, nil
		}
		return config, fmt.Errorf("reading config: %w", err)
	}
	var stored fileConfig
	if err := yaml.Unmarshal(data, &stored); err != nil {
		return config, fmt.Errorf("parsing config: %w", err)
	}
	return mergeConfig(config, stored), nil
}

func SaveConfig(path string, config Config) error {
	if path == "" {
		return fmt.Errorf("cannot determine config directory")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

func mergeConfig(base Config, stored fileConfig) Config {
	merged := base
	if stored.ConnectionsFile != nil {
		merged.ConnectionsFile = expandHome(*stored.ConnectionsFile)
	}
	if stored.PuttySessionsDir != nil {
		merged.PuttySessionsDir = expandHome(*stored.PuttySessionsDir)
	}
	if stored.OpenFromLastSession != nil {
		merged.OpenFromLastSession = *stored.OpenFromLastSession
	}
	if stored.NoReconnect != nil {
		merged.NoReconnect = *stored.NoReconnect
	}
	if stored.SwitchToOpen != nil {
		merged.SwitchToOpen = *stored.SwitchToOpen
	}
	if stored.Theme != nil {
		merged.Theme = themeName(*stored.Theme, base.Theme)
	}
	if stored.LogLevel != nil {
		merged.LogLevel = *stored.LogLevel
	}
	if stored.LogFile != nil {
		merged.LogFile = expandHome(*stored.LogFile)
	}
	if stored.ExternalTools != nil {
		merged.ExternalTools = stored.ExternalTools
	}
	if stored.Clients != nil {
		merged.Clients = stored.Clients
	}
	if stored.KeyBindings != nil {
		merged.KeyBindings = stored.KeyBindings
	}
	return merged
}

func themeName(value, fallback string) string {
	switch value {
	case "dark", "light":
		return value
	default:
		return fallback
	}
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, strings.TrimPrefix(path, "~"))
	}
	return path
}

// ClientTools resolves the configured protocol clients. Unknown protocol
// names are skipped.
func (config Config) ClientTools() map[domain.Protocol]services.ExternalTool {
	tools := make(map[domain.Protocol]services.ExternalTool, len(config.Clients))
	for name, tool := range config.Clients {
		if protocol, ok := domain.ParseProtocol(name); ok {
			tools[protocol] = tool
		}
	}
	return tools
}

// ExternalTool finds a tool by case-insensitive name.
func (config Config) ExternalTool(name string) (services.ExternalTool, bool) {
	for _, tool := range config.ExternalTools {
		if strings.EqualFold(tool.Name, name) {
			return tool, true
		}
	}
	return services.ExternalTool{}, false
}
