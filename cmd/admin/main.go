// Package main implements sitepilot-admin, operator commands run against the
// configured database outside the API server.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"sitepilot/internal/config"
	"sitepilot/internal/db"
	"sitepilot/internal/store"
)

var (
	// envFile is loaded before the configuration when present
	envFile string
	version = "dev"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "sitepilot-admin",
	Short: "Operator commands for sitepilot",
	Long: `sitepilot-admin manages users, credentials and maintenance jobs
directly against the configured postgres database.`,
	Version:      version,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env", ".env", "environment file to load if it exists")
}

// loadConfig reads the environment file, if any, then the configuration.
func loadConfig() (*config.Config, error) {
	if _, err := os.Stat(envFile); err == nil {
		if err := godotenv.Load(envFile); err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", envFile, err)
		}
	}
	return config.Load()
}

// openRepository connects to postgres; the memory store has nothing to administer.
func openRepository(cfg *config.Config) (*store.GormRepository, func(), error) {
	if cfg.Store.Provider != "postgres" {
		return nil, nil, fmt.Errorf("STORE_PROVIDER=%s: admin commands need postgres", cfg.Store.Provider)
	}
	conn, err := db.Connect(cfg)
	if err != nil {
		return nil, nil, err
	}
	closeFn := func() { _ = db.Close() }
	return store.NewGormRepository(conn), closeFn, nil
}

// withRepository loads configuration, opens the store and runs fn.
func withRepository(fn func(ctx context.Context, cfg *config.Config, repo *store.GormRepository) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	repo, closeFn, err := openRepository(cfg)
	if err != nil {
		return err
	}
	defer closeFn()
	return fn(context.Background(), cfg, repo)
}
