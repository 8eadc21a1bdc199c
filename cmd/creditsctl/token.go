package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/craiverse/credits-service/internal/auth"
	"github.com/craiverse/credits-service/internal/config"
	"github.com/craiverse/credits-service/internal/models"
)

func tokenCmd(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Manage API tokens",
	}

	var (
		role  string
		appID string
		ttl   time.Duration
	)

	issueCmd := &cobra.Command{
		Use:   "issue [subject]",
		Short: "Issue a signed bearer token for a user or a CRAIverse app",
		Example: `  creditsctl token issue user_123
  creditsctl token issue image-studio --role service --app-id image-studio --ttl 720h`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if role == models.RoleService && appID == "" {
				appID = args[0]
			}

			token, err := auth.NewManager(cfg.AuthSecret, auth.DefaultIssuer).GenerateToken(args[0], role, appID, ttl)
			if err != nil {
				return err
			}
			fmt.Println(token)
			return nil
		},
	}
	issueCmd.Flags().StringVar(&role, "role", models.RoleUser, "token role (user or service)")
	issueCmd.Flags().StringVar(&appID, "app-id", "", "calling app ID for service tokens")
	issueCmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")

	cmd.AddCommand(issueCmd)
	return cmd
}
