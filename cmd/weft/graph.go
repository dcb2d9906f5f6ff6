package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tessellate-io/weft/internal/presentation/graph"
)

var graphCmd = &cobra.Command{
	Use:   "graph [path]",
	Short: "Render the pipeline as a Mermaid flowchart",
	Long:  `Prints Mermaid flowchart syntax for the workflow pipeline, suitable for docs or a Mermaid live editor.`,
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		path := resolvePath(cmd, args)
		doc, err := runValidate(path)
		if err != nil {
			fmt.Printf("Cannot render %s: %v\n", path, err)
			os.Exit(1)
		}
		fmt.Print(graph.GenerateMermaid(doc, nil))
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)
}
