package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/opencivic/sdcrs/internal/config"
	"github.com/opencivic/sdcrs/pkg/workflow"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the workflow definition for consistency",
	Long: `Builds the workflow table (with any tenant tuning applied) and verifies
that every target state is declared, every guard, transform and action ID
resolves, all states are reachable from the initial state and terminal
states carry only their documented exceptions.`,
	Run: func(cmd *cobra.Command, args []string) {
		workflowPath, _ := cmd.Flags().GetString("workflow")

		if err := runValidate(workflowPath); err != nil {
			fmt.Printf("Validation failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Workflow definition is valid! ✅")
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(workflowPath string) error {
	cfg, err := config.LoadWorkflow(workflowPath)
	if err != nil {
		return err
	}
	return workflow.New(cfg).Validate()
}
