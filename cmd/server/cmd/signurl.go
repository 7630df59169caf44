package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/openatelier/server/internal/auth"
	"github.com/openatelier/server/internal/signing"
)

var (
	signurlCmd = &cobra.Command{
		Use:   "signurl",
		Short: "Issue a signed file URL",
		Long: `Issue a time-boxed signed URL for a protected file, using the same
MASTER_SECRET the server verifies against. Useful for operations and
debugging.

Examples:
  MASTER_SECRET=... server signurl --path images/1/source.png --user user-42
  MASTER_SECRET=... server signurl --path exports/report.pdf --user admin-1 --ttl 15m`,
		RunE: runSignURL,
	}

	signurlPath string
	signurlUser string
	signurlTTL  time.Duration
)

func init() {
	signurlCmd.Flags().StringVar(&signurlPath, "path", "", "resource path relative to the files root (required)")
	signurlCmd.Flags().StringVar(&signurlUser, "user", "", "subject user id (required)")
	signurlCmd.Flags().DurationVar(&signurlTTL, "ttl", time.Hour, "validity window")
	_ = signurlCmd.MarkFlagRequired("path")
	_ = signurlCmd.MarkFlagRequired("user")
}

func runSignURL(cmd *cobra.Command, args []string) error {
	secret := os.Getenv("MASTER_SECRET")
	if secret == "" {
		return fmt.Errorf("MASTER_SECRET is required")
	}

	key, err := auth.DeriveURLSigningKey([]byte(secret))
	if err != nil {
		return fmt.Errorf("derive signing key: %w", err)
	}

	signer := signing.NewSigner(key)
	url := signer.SignedURL("/files", signurlPath, signurlUser, time.Now().Add(signurlTTL))
	fmt.Fprintln(cmd.OutOrStdout(), url)
	return nil
}
