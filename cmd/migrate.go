package cmd

import (
	"github.com/pressly/goose/v3"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"media-convert/config"
	"media-convert/migrations"
)

func migrateCmd(config *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "apply database migrations",
		Run: func(cmd *cobra.Command, args []string) {
			if err := config.DB.Ping(); err != nil {
				log.Fatal().Err(err).Msg("database unreachable")
			}
			goose.SetBaseFS(migrations.FS)
			if err := goose.Up(config.DB, "."); err != nil {
				log.Fatal().Err(err).Msg("migration failed")
			}
			log.Info().Msg("migrations applied")
		},
	}
}
