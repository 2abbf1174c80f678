package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/perfmap/perfmap/pkg/schema"
	"github.com/spf13/cobra"
)

// schemaCmd represents the schema command
var schemaCmd = &cobra.Command{
	Use:    "schema",
	Short:  "Output JSON schemas and definitions",
	Long:   `Output the JSON Schemas of analysis results and catalog documents, the progress stages and the canonical regions.`,
	Hidden: true,
	Run: func(cmd *cobra.Command, args []string) {
		output, err := schema.GetSchema()
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Error generating schema: %v\n", err)
			os.Exit(1)
			return
		}

		// Marshal to JSON
		outputBytes, err := json.MarshalIndent(output, "", "  ")
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Error marshaling output: %v\n", err)
			os.Exit(1)
			return
		}

		fmt.Fprintln(cmd.OutOrStdout(), string(outputBytes))
	},
}

func init() {
	rootCmd.AddCommand(schemaCmd)
}
