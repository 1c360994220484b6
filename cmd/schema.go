package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/kjourdan1/azaudit/internal/config"
	"github.com/kjourdan1/azaudit/internal/exitcode"
)

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Export the azaudit.yaml JSON Schema",
	Long: `Prints the JSON Schema azaudit validates its configuration against,
for editor integration.

Examples:
  azaudit schema                      # print schema to stdout
  azaudit schema --output schema.json # write to file`,
	Args: cobra.NoArgs,
	RunE: runSchemaExport,
}

var schemaOutputFile string

func init() {
	schemaCmd.Flags().StringVarP(&schemaOutputFile, "output", "o", "", "write schema to file instead of stdout")
	rootCmd.AddCommand(schemaCmd)
}

func runSchemaExport(cmd *cobra.Command, args []string) error {
	data := config.GetSchema()
	if len(data) == 0 {
		return exitcode.Wrap(exitcode.Validation, fmt.Errorf("no embedded schema available"))
	}

	if schemaOutputFile != "" {
		if err := os.MkdirAll(filepath.Dir(schemaOutputFile), 0o755); err != nil {
			return exitcode.Wrap(exitcode.Generic, err)
		}
		if err := os.WriteFile(schemaOutputFile, data, 0o644); err != nil {
			return exitcode.Wrap(exitcode.Generic, err)
		}
		color.New(color.FgGreen).Fprintf(cmd.ErrOrStderr(), "✅ Schema written to %s\n", schemaOutputFile)
		return nil
	}

	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}
