// Package party parses party command flags and composes transport entrypoints.
package party

import (
	"context"
	"flag"
	"fmt"

	entrypoint "github.com/soundleaf/soundleaf/internal/platform/cmd"
	server "github.com/soundleaf/soundleaf/internal/services/party/app"
)

// Config holds party command configuration.
type Config struct {
	HTTPAddr      string `env:"SOUNDLEAF_PARTY_HTTP_ADDR"       envDefault:":8087"`
	CatalogDBPath string `env:"SOUNDLEAF_PARTY_CATALOG_DB_PATH" envDefault:"catalog.db"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}

	fs.StringVar(&cfg.HTTPAddr, "http-addr", cfg.HTTPAddr, "party HTTP listen address")
	fs.StringVar(&cfg.CatalogDBPath, "catalog-db-path", cfg.CatalogDBPath, "catalog SQLite database path")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run builds the party app and starts serving listen-party sessions.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceParty, func(context.Context) error {
		if err := server.Run(ctx, server.Config{
			HTTPAddr:      cfg.HTTPAddr,
			CatalogDBPath: cfg.CatalogDBPath,
		}); err != nil {
			return fmt.Errorf("serve party: %w", err)
		}
		return nil
	})
}
