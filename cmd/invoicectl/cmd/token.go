package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/snaptosheet/invoice-extract-service/internal/auth"
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint a bearer token for the API",
	Long: `Mint an HS256 token signed with the configured JWT secret
(auth.jwt_secret or JWT_SECRET).

Examples:
  invoicectl token --subject accounts-team --ttl 72h`,
	Args: cobra.NoArgs,
	RunE: runToken,
}

func init() {
	rootCmd.AddCommand(tokenCmd)

	tokenCmd.Flags().String("subject", "", "token subject")
	tokenCmd.Flags().Duration("ttl", 24*time.Hour, "token lifetime")
	_ = tokenCmd.MarkFlagRequired("subject")
}

func runToken(cmd *cobra.Command, args []string) error {
	subject, _ := cmd.Flags().GetString("subject")
	ttl, _ := cmd.Flags().GetDuration("ttl")

	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}

	token, err := auth.New(cfg.Auth.JWTSecret).GenerateToken(subject, ttl)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), token)
	return nil
}
