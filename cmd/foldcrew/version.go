package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ShayCichocki/foldcrew/internal/version"
)

var versionShort bool

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		if versionShort {
			fmt.Fprintln(cmd.OutOrStdout(), version.Get())
			return
		}
		fmt.Fprintf(cmd.OutOrStdout(), "foldcrew version %s\n", version.Full())
	},
}

func init() {
	versionCmd.Flags().BoolVar(&versionShort, "short", false, "Print only the release number")
}
