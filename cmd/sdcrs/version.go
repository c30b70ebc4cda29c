package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/opencivic/sdcrs"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of sdcrs",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("sdcrs version %s\n", strings.TrimSpace(sdcrs.Version))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
