package main

import (
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"deckgen/internal/infra"
)

var envFile string

var rootCmd = &cobra.Command{
	Use:           "deckctl",
	Short:         "Operate the deck generation service from the command line",
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(apikeyCmd)

	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Optional dotenv file loaded before reading the environment")
}

// setup loads the environment and configuration shared by every command.
func setup() (*infra.Config, zerolog.Logger, error) {
	if envFile != "" {
		_ = godotenv.Load(envFile)
	}
	cfg, err := infra.LoadConfig()
	if err != nil {
		return nil, zerolog.Nop(), err
	}
	return cfg, infra.NewLogger(cfg.AppEnv, cfg.LogLevel), nil
}
