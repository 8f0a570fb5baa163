package main

import (
	"errors"

	"github.com/spf13/cobra"

	"deckgen/internal/infra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := setup()
		if err != nil {
			return err
		}
		if cfg.DatabaseURL == "" {
			return errors.New("DATABASE_URL is required")
		}
		if err := infra.Migrate(cfg.DatabaseURL, logger); err != nil {
			return err
		}
		logger.Info().Msg("deckctl: database migrated")
		return nil
	},
}
