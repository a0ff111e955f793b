package main

import (
	"fmt"
	"strings"

	"github.com/aretw0/scenesync"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of scenesync",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "scenesync version %s\n", strings.TrimSpace(scenesync.Version))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
