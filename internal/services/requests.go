package services

// ConnectOptions mirrors the connect-with-options menu.
type ConnectOptions struct {
	ConsoleSession   bool
	NoConsoleSession bool
	Fullscreen       bool
	NoCredentials    bool
	ChoosePanel      bool
	Panel            string
}

// ExternalTool is a user-defined command run against a connection. Args may
// contain %NAME%, %HOSTNAME%, %PORT%, %USERNAME%, %PASSWORD% and %PROTOCOL%.
type ExternalTool struct {
	Name    string   `yaml:"name"`
	Command string   `yaml:"command"`
	Args    []string `yaml:"args,omitempty"`
}
