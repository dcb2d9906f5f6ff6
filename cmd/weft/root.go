package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "weft",
	Short: "Weft runs declarative workflow documents as multi-step applications",
	Long: `Weft loads a YAML workflow document and serves it as a session-based
application: pipeline steps run server-side, the wizard UI definition is
exposed to a generic frontend, and sessions persist in memory or Redis.`,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringP("workflow", "w", "", "Path to the workflow document (overrides WORKFLOW_PATH)")
}
