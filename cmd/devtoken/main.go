// Command devtoken mints an HS256 bearer token for local development
// against a server configured with AUTH_JWT_SECRET.
package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"janus/internal/models"
	"janus/pkg/auth"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func main() {
	_ = godotenv.Load()

	var identity models.Identity
	var ttl time.Duration

	rootCmd := &cobra.Command{
		Use:   "devtoken",
		Short: "Mint a development bearer token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			secret := os.Getenv("AUTH_JWT_SECRET")
			if secret == "" {
				return errors.New("AUTH_JWT_SECRET is not set")
			}

			token, err := auth.IssueToken(secret, identity, os.Getenv("AUTH_JWT_ISSUER"), ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	rootCmd.Flags().StringVar(&identity.UID, "uid", "dev-user", "subject (user id) of the token")
	rootCmd.Flags().StringVar(&identity.Email, "email", "", "email claim")
	rootCmd.Flags().StringVar(&identity.Name, "name", "", "name claim")
	rootCmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
