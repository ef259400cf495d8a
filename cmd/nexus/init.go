package main

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/nexusshell/nexus/internal/config"
)

// initCmd writes a default configuration file to the current
// directory. Grounded on cmd/init.go's config.Initialize call,
// restated over this module's JSON configuration instead of the
// teacher's YAML one.
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default configuration file in the current directory.",
	Args:  cobra.ExactArgs(0),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true

		path := filepath.Join(".", config.ConfigurationName)
		if _, err := os.Stat(path); err == nil {
			cmd.PrintErrf("%s already exists, leaving it untouched\n", path)
			return nil
		}

		data, err := json.MarshalIndent(config.Default(), "", "  ")
		if err != nil {
			return err
		}
		data = append(data, '\n')
		return os.WriteFile(path, data, 0o644)
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
