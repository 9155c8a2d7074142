package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/loomhost/loom/internal/version"
)

// versionCmd implements the version command.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version of loom",
	Long:  `Print the version, Git commit hash, build date, and platform of loom.`,
	Run: func(_ *cobra.Command, _ []string) {
		info := version.Get()
		fmt.Printf("loom version %s\n", info.Full())
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
