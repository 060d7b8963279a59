package cmd

import (
	"github.com/spf13/cobra"

	"media-convert/config"
)

func Root(config *config.Config) *cobra.Command {
	rootCmd := &cobra.Command{}
	rootCmd.AddCommand(workerCmd(config))
	rootCmd.AddCommand(apiCmd(config))
	rootCmd.AddCommand(migrateCmd(config))
	return rootCmd
}
