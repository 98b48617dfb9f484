package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/consulthub/consulthub-api/auth"
	"github.com/consulthub/consulthub-api/config"
)

var (
	flagTokenUser string
	flagTokenTTL  time.Duration
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue a bearer token for a user",
	Long: `Issue a bearer token signed with JWT_SECRET, for local testing of the
gateway and the REST api.

Examples:
  consulthub-api token --user 64b7f0c2e4b0a1a2b3c4d5e6
  consulthub-api token --user 64b7f0c2e4b0a1a2b3c4d5e6 --ttl 30m`,
	RunE: func(cmd *cobra.Command, args []string) error {
		conf := config.New()
		token, err := auth.IssueToken(conf.JWTSecret, flagTokenUser, flagTokenTTL)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

func init() {
	tokenCmd.Flags().StringVar(&flagTokenUser, "user", "", "user id to put in the token")
	tokenCmd.Flags().DurationVar(&flagTokenTTL, "ttl", 2*time.Hour, "token lifetime")
	_ = tokenCmd.MarkFlagRequired("user")
	rootCmd.AddCommand(tokenCmd)
}
