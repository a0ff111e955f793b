package main

import (
	"fmt"
	"time"

	"github.com/aretw0/scenesync/internal/cli"
	"github.com/spf13/cobra"
)

var tokenCmd = &cobra.Command{
	Use:   "token <subject>",
	Short: "Issue a bearer token signed with server.auth_secret",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ttl, _ := cmd.Flags().GetDuration("ttl")
		token, err := cli.IssueToken(cfg.Server, args[0], ttl)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

func init() {
	tokenCmd.Flags().Duration("ttl", 24*time.Hour, "Token lifetime (0 never expires)")
	rootCmd.AddCommand(tokenCmd)
}
