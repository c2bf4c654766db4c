package config

import "conntree/internal/services"

type Config struct {
	ConnectionsFile     string                           `yaml:"connections_file"`
	PuttySessionsDir    string                           `yaml:"putty_sessions_dir"`
	OpenFromLastSession bool                             `yaml:"open_from_last_session"`
	NoReconnect         bool                             `yaml:"no_reconnect"`
	SwitchToOpen        bool                             `yaml:"switch_to_open"`
	Theme               string                           `yaml:"theme"`
	LogLevel            string                           `yaml:"log_level"`
	LogFile             string                           `yaml:"log_file"`
	ExternalTools       []services.ExternalTool          `yaml:"external_tools,omitempty"`
	Clients             map[string]services.ExternalTool `yaml:"clients,omitempty"`
	KeyBindings         map[string]string                `yaml:"key_bindings,omitempty"`
}

type fileConfig struct {
	ConnectionsFile     *string                          `yaml:"connections_file"`
	PuttySessionsDir    *string                          `yaml:"putty_sessions_dir"`
	OpenFromLastSession *bool                            `yaml:"open_from_last_session"`
	NoReconnect         *bool                            `yaml:"no_reconnect"`
	SwitchToOpen        *bool                            `yaml:"switch_to_open"`
	Theme               *string                          `yaml:"theme"`
	LogLevel            *string                          `yaml:"log_level"`
	LogFile             *string                          `yaml:"log_file"`
	ExternalTools       []services.ExternalTool          `yaml:"external_tools"`
	Clients             map[string]services.ExternalTool `yaml:"clients"`
	KeyBindings         map[string]string                `yaml:"key_bindings"`
}
