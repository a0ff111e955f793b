package main

import (
	"github.com/aretw0/scenesync/internal/cli"
	"github.com/spf13/cobra"
)

var showCmd = &cobra.Command{
	Use:   "show [document]",
	Short: "Print a document, or list documents when none is given",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			return cli.List(cmd.Context(), cfg.Client, cmd.OutOrStdout())
		}
		return cli.Show(cmd.Context(), cfg.Client, args[0], cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(showCmd)
}
