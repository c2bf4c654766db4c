package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"conntree/internal/app"
	"conntree/internal/config"
)

var rootFlags *config.Flags

var rootCmd = &cobra.Command{
	Use:          "conntree",
	Short:        "Manage a tree of remote connections from the terminal",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, status := loadConfig(cmd)
		return app.Run(cmd.Context(), app.Options{
			Config:     cfg,
			ConfigPath: rootFlags.ConfigPath,
			DryRun:     rootFlags.DryRun,
			Status:     status,
		})
	},
}

func init() {
	rootFlags = config.BindFlags(rootCmd.PersistentFlags())
}

// loadConfig falls back to defaults when the config file cannot be read and
// reports why in the returned status.
func loadConfig(cmd *cobra.Command) (config.Config, string) {
	base, err := config.LoadConfig(rootFlags.ConfigPath)
	status := ""
	if err != nil {
		base = config.DefaultConfig()
		status = fmt.Sprintf("Config warning: %v - using defaults", err)
	}
	return rootFlags.Apply(cmd.Flags(), base), status
}
