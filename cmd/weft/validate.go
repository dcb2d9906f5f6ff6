package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tessellate-io/weft/internal/config"
	"github.com/tessellate-io/weft/pkg/workflow"
)

var validateCmd = &cobra.Command{
	Use:   "validate [path]",
	Short: "Check a workflow document for schema and reference errors",
	Long:  `Parses the document and reports every violation: duplicate ids, unknown components, undeclared providers, and dangling jump targets.`,
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		path := resolvePath(cmd, args)
		doc, err := runValidate(path)
		if err != nil {
			fmt.Printf("Validation failed for %s:\n%v\n", path, err)
			os.Exit(1)
		}
		fmt.Printf("%s is valid: %q, %d pipeline steps, %d ui steps\n",
			path, doc.Info.Name, len(doc.Pipeline.Steps), uiStepCount(doc))
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func resolvePath(cmd *cobra.Command, args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	if path, _ := cmd.Flags().GetString("workflow"); path != "" {
		return path
	}
	if path := strings.TrimSpace(os.Getenv("WORKFLOW_PATH")); path != "" {
		return path
	}
	return config.DefaultWorkflowPath
}

func runValidate(path string) (*workflow.Document, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return workflow.Parse(raw)
}

func uiStepCount(doc *workflow.Document) int {
	if doc.UI == nil {
		return 0
	}
	return len(doc.UI.Steps)
}
