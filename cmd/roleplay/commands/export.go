// ABOUTME: Export command writing a conversation to YAML or Markdown
// ABOUTME: Includes the transcript, recall memories and fact tables
package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var (
	exportOutput string
	exportType   string
)

// NewExportCmd creates the export command
func NewExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export <conversation-id>",
		Short: "Export a conversation to YAML or Markdown",
		Long: `Export a conversation's transcript, memories and fact tables.

Examples:
  roleplay export ayla
  roleplay export ayla --type markdown --output ayla.md`,
		Args: cobra.ExactArgs(1),
		RunE: runExport,
	}

	cmd.Flags().StringVarP(&exportOutput, "output", "o", "", "Output file (default: <id>.yaml or <id>.md)")
	cmd.Flags().StringVar(&exportType, "type", "yaml", "Export type: yaml, markdown")

	return cmd
}

func runExport(cmd *cobra.Command, args []string) error {
	id := args[0]
	kind := strings.ToLower(exportType)
	if kind != "yaml" && kind != "markdown" {
		return fmt.Errorf("--type must be yaml or markdown, got %q", exportType)
	}

	output := exportOutput
	if output == "" {
		output = id + ".yaml"
		if kind == "markdown" {
			output = id + ".md"
		}
	}

	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer closeApp(cmd, a)

	if kind == "markdown" {
		err = a.DB.ExportToMarkdown(cmd.Context(), id, output)
	} else {
		err = a.DB.ExportToYAML(cmd.Context(), id, output)
	}
	if err != nil {
		return fmt.Errorf("exporting: %w", err)
	}

	if !quiet {
		fmt.Fprintf(cmd.OutOrStdout(), "Exported %s to %s\n", id, output)
	}
	return nil
}
