package main

import (
	"fmt"

	"github.com/aretw0/scenesync/internal/cli"
	"github.com/spf13/cobra"
)

var applyCmd = &cobra.Command{
	Use:   "apply <file>",
	Short: "Submit a transaction file to the authority",
	Long: `Reads a YAML transaction file ("-" for stdin), tracks its document,
submits the transaction and prints the resulting document.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := cli.ReadTxnFile(args[0])
		if err != nil {
			return err
		}

		ctx := cli.NewSignalContext(cmd.Context())
		defer ctx.Cancel()

		resp, snap, err := cli.Apply(ctx, cfg.Client, logger, f)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "# committed %s at version %d\n", f.Document, resp.Version)
		if quiet, _ := cmd.Flags().GetBool("quiet"); quiet {
			return nil
		}
		return cli.WriteYAML(out, snap)
	},
}

func init() {
	rootCmd.AddCommand(applyCmd)
	applyCmd.Flags().BoolP("quiet", "q", false, "Do not print the resulting document")
}
