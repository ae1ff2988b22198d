package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/tri-cli/internal/config"
	"github.com/sells-group/tri-cli/internal/envirofacts"
	"github.com/sells-group/tri-cli/pkg/geocode"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "tri-cli",
	Short: "Client toolkit for the EPA Toxics Release Inventory",
	Long:  "Retrieves, paginates, and filters tables from the EPA Envirofacts TRI database, converts TRI coordinate encodings, and geolocates facility addresses.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newEnvirofactsClient builds the table client from loaded config.
func newEnvirofactsClient() *envirofacts.Client {
	opts := []envirofacts.Option{
		envirofacts.WithBaseURL(cfg.Envirofacts.BaseURL),
		envirofacts.WithRetries(cfg.Envirofacts.Retries),
		envirofacts.WithRateLimit(cfg.Envirofacts.RPS),
	}
	if cfg.Envirofacts.PoolSize > 0 {
		opts = append(opts, envirofacts.WithPoolSize(cfg.Envirofacts.PoolSize))
	}
	return envirofacts.NewClient(opts...)
}

// newGeocoder builds the Nominatim client from loaded config.
func newGeocoder() *geocode.Client {
	return geocode.NewClient(
		geocode.WithBaseURL(cfg.Geocoder.BaseURL),
		geocode.WithMaxAttempts(cfg.Geocoder.MaxAttempts),
		geocode.WithUserAgent(cfg.Geocoder.UserAgent),
	)
}
