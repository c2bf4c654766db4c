package config

import "github.com/spf13/pflag"

// Flags holds the command-line overrides bound to a flag set.
type Flags struct {
	ConfigPath      string
	ConnectionsFile string
	PuttyDir        string
	Theme           string
	LogLevel        string
	NoReconnect     bool
	DryRun          bool
}

func BindFlags(flags *pflag.FlagSet) *Flags {
	bound := &Flags{}
	flags.StringVar(&bound.ConfigPath, "config", ConfigPath(), "Path to config.yaml")
	flags.StringVar(&bound.ConnectionsFile, "connections", "", "Connections file to open")
	flags.StringVar(&bound.PuttyDir, "putty-dir", "", "Directory of saved PuTTY sessions")
	flags.StringVar(&bound.Theme, "theme", "", "Color theme (dark, light)")
	flags.StringVar(&bound.LogLevel, "log-level", "", "Log level (debug, info, warn, error)")
	flags.BoolVar(&bound.NoReconnect, "no-reconnect", false, "Do not reopen sessions from the last run")
	flags.BoolVar(&bound.DryRun, "dry-run", false, "Track sessions and tools without starting processes")
	return bound
}

// Apply overrides base with every flag set explicitly on the command line.
func (bound *Flags) Apply(flags *pflag.FlagSet, base Config) Config {
	if flags.Changed("connections") {
		base.ConnectionsFile = expandHome(bound.ConnectionsFile)
	}
	if flags.Changed("putty-dir") {
		base.PuttySessionsDir = expandHome(bound.PuttyDir)
	}
	if flags.Changed("theme") {
		base.Theme = themeName(bound.Theme, base.Theme)
	}
	if flags.Changed("log-level") {
		base.LogLevel = bound.LogLevel
	}
	if flags.Changed("no-reconnect") {
		base.NoReconnect = bound.NoReconnect
	}
	return base
}
