package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"multichat/internal/pkg/jwt"
)

var tokenCmd = &cobra.Command{
	Use:   "token <user-id>",
	Short: "Issue a bearer token for the chat API",
	Long: `Sign a JWT with auth.jwt_secret. Put it in client.token (or MULTICHAT_CLIENT_TOKEN)
so the terminal client authenticates as that user.`,
	Args: cobra.ExactArgs(1),
	RunE: runToken,
}

func init() {
	rootCmd.AddCommand(tokenCmd)
	tokenCmd.Flags().Duration("expiry", 0, "token lifetime (default: auth.access_token_expiry, 0 with --no-expiry)")
	tokenCmd.Flags().Bool("no-expiry", false, "issue a token that never expires")
}

func runToken(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	if cfg.Auth.JWTSecret == "" {
		return errors.New("auth.jwt_secret is not configured")
	}

	expiry, _ := cmd.Flags().GetDuration("expiry")
	if expiry <= 0 {
		expiry = cfg.Auth.AccessTokenExpiry
	}
	if noExpiry, _ := cmd.Flags().GetBool("no-expiry"); noExpiry {
		expiry = 0
	}

	token, err := jwt.NewJWT(cfg.Auth.JWTSecret, expiry).GenerateToken(args[0])
	if err != nil {
		return fmt.Errorf("sign token: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), token)
	if expiry > 0 {
		fmt.Fprintf(cmd.ErrOrStderr(), "expires at %s\n", time.Now().Add(expiry).Format(time.RFC3339))
	}
	return nil
}
