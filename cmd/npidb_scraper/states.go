package main

import (
	"github.com/spf13/cobra"

	"github.com/jonathan/npidb-scraper/internal/export"
)

var statesCmd = &cobra.Command{
	Use:   "states",
	Short: "List supported state codes",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		export.NewPrinter(cmd.OutOrStdout()).PrintStates()
	},
}

func init() {
	rootCmd.AddCommand(statesCmd)
}
