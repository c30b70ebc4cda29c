package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "sdcrs",
	Short: "Stray-dog case reporting and resolution service",
	Long: `sdcrs runs the stray-dog sighting case workflow: a deterministic
state machine handling validation, verification, field assignment,
resolution and the capped-retry payout sub-flow.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().String("config", "", "Path to the process config file")
	rootCmd.PersistentFlags().String("workflow", "", "Path to the tenant workflow tuning file (YAML)")
}
