package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"sitepilot/internal/config"
	"sitepilot/internal/models"
	"sitepilot/internal/permissions"
	"sitepilot/internal/store"
	"sitepilot/internal/utils"
)

var (
	adminEmail    string
	adminPassword string
	adminName     string

	tokenEmail  string
	tokenClient string
	tokenTTL    time.Duration
)

func init() {
	rootCmd.AddCommand(createAdminCmd)
	createAdminCmd.Flags().StringVar(&adminEmail, "email", "", "administrator email (required)")
	createAdminCmd.Flags().StringVar(&adminPassword, "password", "", "administrator password (required)")
	createAdminCmd.Flags().StringVar(&adminName, "name", "Administrator", "display name")
	_ = createAdminCmd.MarkFlagRequired("email")
	_ = createAdminCmd.MarkFlagRequired("password")

	rootCmd.AddCommand(issueTokenCmd)
	issueTokenCmd.Flags().StringVar(&tokenEmail, "email", "", "user to issue the token for (required)")
	issueTokenCmd.Flags().StringVar(&tokenClient, "client", "", "client type: desktop, mobile, api or web (default: the user's)")
	issueTokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 0, "token lifetime (default: JWT_EXPIRATION)")
	_ = issueTokenCmd.MarkFlagRequired("email")
}

// createAdminCmd seeds an administrator account
var createAdminCmd = &cobra.Command{
	Use:   "create-admin",
	Short: "Create an administrator account",
	Long: `Create an administrator unless a user with the email already exists.
Administrators cannot self-register through the API.

Examples:
  sitepilot-admin create-admin --email ops@example.com --password s3cret`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRepository(func(ctx context.Context, _ *config.Config, repo *store.GormRepository) error {
			created, err := models.EnsureAdmin(ctx, repo, models.AdminSeed{
				Email:    adminEmail,
				Password: adminPassword,
				Name:     adminName,
			})
			if err != nil {
				return err
			}
			if created {
				cmd.Printf("Created administrator %s\n", adminEmail)
			} else {
				cmd.Printf("User %s already exists\n", adminEmail)
			}
			return nil
		})
	},
}

// issueTokenCmd mints a bearer token for scripted API access
var issueTokenCmd = &cobra.Command{
	Use:   "issue-token",
	Short: "Issue a bearer token for an existing user",
	Long: `Issue a signed bearer token for an existing user, typically with the
api client type so scripts can use bulk operations.

Examples:
  sitepilot-admin issue-token --email bot@example.com --client api --ttl 720h`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if tokenClient != "" && !permissions.KnownClientType(tokenClient) {
			return fmt.Errorf("unknown client type %q", tokenClient)
		}
		return withRepository(func(ctx context.Context, cfg *config.Config, repo *store.GormRepository) error {
			user, err := repo.GetUserByEmail(ctx, tokenEmail)
			if err != nil {
				return err
			}
			ttl := tokenTTL
			if ttl <= 0 {
				ttl = cfg.JWT.Expiration
			}
			token, err := utils.GenerateJWT(cfg.JWT.Secret, *user, tokenClient, ttl)
			if err != nil {
				return fmt.Errorf("failed to sign token: %w", err)
			}
			cmd.Println(token)
			return nil
		})
	},
}
