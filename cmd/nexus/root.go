package main

import (
	"github.com/spf13/cobra"

	"github.com/nexusshell/nexus/internal/config"
)

var cfgPath string

// loadConfig reads the configuration at cfgPath, falling back to
// defaults if the path is empty (no [config-path] positional given).
// Grounded on cmd/root.go's loadConfig helper.
func loadConfig() (*config.Configuration, error) {
	if cfgPath == "" {
		return config.Default(), nil
	}
	return config.Load(cfgPath)
}

// rootCmd is the base command; it has no Run of its own, matching
// cmd/root.go's bare root command with subcommands doing the work.
var rootCmd = &cobra.Command{
	Use:   "nexus",
	Short: "Nexus interactive shell",
	Long:  "Nexus: a dual-mode shell supporting traditional pipelines and embedded scripting.",
}

// Execute runs the root command, delegating to cobra's own error
// reporting. Called once from main().
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "config file or directory path")
}
