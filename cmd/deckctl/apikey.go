package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"deckgen/internal/infra"
	"deckgen/internal/infra/credentials"
)

var (
	apikeyProvider string
	apikeyValue    string
)

var apikeyCmd = &cobra.Command{
	Use:   "apikey",
	Short: "Manage generation provider API keys stored in the database",
}

var apikeySetCmd = &cobra.Command{
	Use:   "set",
	Short: "Store the API key of a generation provider",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := setup()
		if err != nil {
			return err
		}
		if cfg.DatabaseURL == "" {
			return errors.New("DATABASE_URL is required")
		}
		provider := strings.ToLower(strings.TrimSpace(apikeyProvider))
		key := strings.TrimSpace(apikeyValue)
		if key == "" {
			key = strings.TrimSpace(os.Getenv(strings.ToUpper(provider) + "_API_KEY"))
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), 15*time.Second)
		defer cancel()

		pool, err := infra.NewDBPool(ctx, cfg)
		if err != nil {
			return err
		}
		defer pool.Close()

		store := credentials.NewStore(infra.NewSQLRunner(pool, logger))
		if err := store.SetToken(ctx, provider, key); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s api key stored\n", provider)
		return nil
	},
}

func init() {
	apikeyCmd.AddCommand(apikeySetCmd)
	apikeySetCmd.Flags().StringVar(&apikeyProvider, "provider", credentials.ProviderGemini, "Provider to configure (gemini, openai or anthropic)")
	apikeySetCmd.Flags().StringVar(&apikeyValue, "key", "", "API key; defaults to <PROVIDER>_API_KEY from the environment")
}
