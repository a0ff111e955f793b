package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/aretw0/scenesync/internal/cli"
	"github.com/aretw0/scenesync/internal/config"
	"github.com/spf13/cobra"
)

var (
	cfg    config.Config
	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "scenesync",
	Short: "scenesync keeps scene documents consistent with an authority",
	Long: `scenesync serves authoritative scene documents over HTTP and applies
transactions against them, with optimistic local application and rollback.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("config")
		loaded, err := config.Load(path)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("log-level") {
			loaded.LogLevel, _ = cmd.Flags().GetString("log-level")
		}
		if cmd.Flags().Changed("authority") {
			loaded.Client.Authority, _ = cmd.Flags().GetString("authority")
		}
		if cmd.Flags().Changed("token") {
			loaded.Client.Token, _ = cmd.Flags().GetString("token")
		}
		l, err := cli.NewLogger(loaded)
		if err != nil {
			return err
		}
		cfg, logger = loaded, l
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "scenesync.yaml", "Config file (YAML or JSON)")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("authority", "", "Authority base URL (overrides client.authority)")
	rootCmd.PersistentFlags().String("token", "", "Bearer token (overrides client.token)")
}
