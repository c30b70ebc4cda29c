package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/opencivic/sdcrs/internal/config"
	"github.com/opencivic/sdcrs/internal/presentation/graph"
	"github.com/opencivic/sdcrs/pkg/workflow"
)

// graphCmd represents the graph command
var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Export the workflow graph visualization",
	Long:  `Outputs a Mermaid diagram (graph TD) of the case workflow: states, events, guards and SLA deadlines.`,
	Run: func(cmd *cobra.Command, args []string) {
		workflowPath, _ := cmd.Flags().GetString("workflow")

		cfg, err := config.LoadWorkflow(workflowPath)
		if err != nil {
			fmt.Printf("Error loading workflow config: %v\n", err)
			os.Exit(1)
		}

		def := workflow.New(cfg)
		if err := def.Validate(); err != nil {
			fmt.Printf("Error validating workflow: %v\n", err)
			os.Exit(1)
		}

		fmt.Print(graph.GenerateMermaid(def, nil))
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)
}
