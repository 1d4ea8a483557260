// ABOUTME: Table commands managing a character's long-term fact tables
// ABOUTME: Tables are rendered into the prompt on every plain generation
package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/harper/roleplay-core/internal/gateway"
	"github.com/harper/roleplay-core/internal/models"
)

var (
	tableHeaders string
	tableRows    []string
)

// NewTableCmd creates the table command group
func NewTableCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "table",
		Short: "Manage a character's fact tables",
		Long: `Manage fact tables: named tables of long-term facts a character should
keep consistent, such as inventories or relationships.`,
	}

	cmd.AddCommand(newTableSetCmd())
	cmd.AddCommand(newTableShowCmd())
	cmd.AddCommand(newTableDeleteCmd())

	return cmd
}

func splitCells(s string) []string {
	cells := strings.Split(s, ",")
	for i := range cells {
		cells[i] = strings.TrimSpace(cells[i])
	}
	return cells
}

func newTableSetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set <conversation-id> <table-name>",
		Short: "Create or replace a fact table",
		Long: `Create or replace a fact table. Cells are comma separated.

Examples:
  roleplay table set ayla Inventory --headers "item,count" --row "rope,1" --row "lantern,2"`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(tableHeaders) == "" {
				return fmt.Errorf("--headers is required")
			}
			table := models.FactTable{Name: args[1], Headers: splitCells(tableHeaders)}
			for _, row := range tableRows {
				cells := splitCells(row)
				if len(cells) != len(table.Headers) {
					return fmt.Errorf("row %q has %d cells, want %d", row, len(cells), len(table.Headers))
				}
				table.Rows = append(table.Rows, cells)
			}

			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer closeApp(cmd, a)

			id := args[0]
			if err := a.DB.Facts().Save(id, id, table); err != nil {
				return fmt.Errorf("saving table: %w", err)
			}
			if !quiet {
				fmt.Fprintf(cmd.OutOrStdout(), "Saved table %s with %d row(s)\n", table.Name, len(table.Rows))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&tableHeaders, "headers", "", "Comma-separated column headers")
	cmd.Flags().StringArrayVar(&tableRows, "row", nil, "Comma-separated row cells (repeatable)")

	return cmd
}

func newTableShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <conversation-id>",
		Short: "Show a character's fact tables",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer closeApp(cmd, a)

			id := args[0]
			tables, err := a.DB.Facts().GetCharacterTables(cmd.Context(), id, id)
			if err != nil {
				return fmt.Errorf("loading tables: %w", err)
			}
			if outputFormat == "json" {
				return printJSON(cmd.OutOrStdout(), tables)
			}
			if len(tables) == 0 {
				if !quiet {
					fmt.Fprintln(cmd.OutOrStdout(), "No tables found")
				}
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), gateway.RenderTables(tables))
			return nil
		},
	}
}

func newTableDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <conversation-id> <table-name>",
		Short: "Delete a fact table",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer closeApp(cmd, a)

			if err := a.DB.Facts().Delete(args[0], args[0], args[1]); err != nil {
				return fmt.Errorf("deleting table: %w", err)
			}
			if !quiet {
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted table %s\n", args[1])
			}
			return nil
		},
	}
}
