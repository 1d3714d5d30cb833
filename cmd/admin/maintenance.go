package main

import (
	"context"

	"github.com/spf13/cobra"

	"sitepilot/internal/config"
	"sitepilot/internal/store"
)

var configOut string

func init() {
	rootCmd.AddCommand(reconcileCmd)
	rootCmd.AddCommand(configCmd)
	configCmd.Flags().StringVarP(&configOut, "out", "o", "sitepilot.config.json", "file to write")
}

// reconcileCmd runs the orphan sweep once
var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Delete discussions whose project no longer exists",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRepository(func(ctx context.Context, _ *config.Config, repo *store.GormRepository) error {
			removed, err := repo.ReconcileOrphans(ctx)
			if err != nil {
				return err
			}
			cmd.Printf("Removed %d orphaned discussions\n", removed)
			return nil
		})
	},
}

// configCmd dumps the effective configuration without secrets
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Write the effective configuration, secrets redacted",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if err := cfg.Save(configOut); err != nil {
			return err
		}
		cmd.Printf("Wrote %s\n", configOut)
		return nil
	},
}
