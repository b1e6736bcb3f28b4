// File: cmd/token.go
package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/xkilldash9x/pocketd/internal/server"
)

// newTokenCmd creates and configures the `token` command.
func newTokenCmd() *cobra.Command {
	var ttl time.Duration

	tokenCmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token for the API server",
		Long: `Prints a signed bearer token for servers running with auth enabled.
Signing uses the POCKETD_JWT_SECRET environment variable, which must match
the secret the server was started with.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := getConfigFromContext(cmd.Context())
			if err != nil {
				return err
			}
			if cfg.Server.JWTSecret == "" {
				return errors.New("POCKETD_JWT_SECRET must be set to mint tokens")
			}

			token, err := server.MintToken(cfg.Server.JWTSecret, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	tokenCmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "How long the token stays valid.")

	return tokenCmd
}
