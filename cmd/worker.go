package cmd

import (
	"github.com/spf13/cobra"

	"media-convert/config"
	server2 "media-convert/server"
)

func workerCmd(config *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "start conversion worker",
		Run: func(cmd *cobra.Command, args []string) {
			server2.RunWorker(config)
		},
	}
}
