package main

import (
	"context"

	"github.com/aretw0/scenesync"
	"github.com/aretw0/scenesync/internal/cli"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the authority HTTP server",
	Long:  `Serves scene documents from the configured backend and applies submitted transactions.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Flags().Changed("addr") {
			cfg.Server.Addr, _ = cmd.Flags().GetString("addr")
		}
		if cmd.Flags().Changed("backend") {
			cfg.Server.Backend, _ = cmd.Flags().GetString("backend")
		}
		if cmd.Flags().Changed("seed") {
			cfg.Server.Seed, _ = cmd.Flags().GetString("seed")
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		stack, err := cli.NewStack(cfg, scenesync.Version, logger)
		if err != nil {
			return err
		}
		defer stack.Close()

		ctx := cli.NewSignalContext(context.Background())
		defer ctx.Cancel()

		logger.Info("starting authority", "backend", cfg.Server.Backend, "seed", cfg.Server.Seed, "auth", cfg.Server.AuthSecret != "")
		if err := cli.Serve(ctx, cfg.Server.Addr, stack.Handler, logger); err != nil {
			return err
		}
		logger.Info("authority stopped gracefully", "signal", ctx.Signal())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("addr", "a", ":8080", "Address to listen on")
	serveCmd.Flags().StringP("backend", "b", "memory", "Snapshot backend (memory, file, redis, badger)")
	serveCmd.Flags().String("seed", "", "Directory of seed scenes loaded on first access")
}
