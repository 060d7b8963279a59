package cmd

import (
	"github.com/spf13/cobra"

	"media-convert/config"
	server2 "media-convert/server"
)

func apiCmd(config *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "api",
		Short: "start api server",
		Run: func(cmd *cobra.Command, args []string) {
			server2.RunAPI(config)
		},
	}
}
