// ABOUTME: Add and recall commands for long-term character memories
// ABOUTME: Memories are scored against each user message and injected on tool turns
package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/harper/roleplay-core/internal/models"
)

var recallLimit int

// NewAddCmd creates the add command
func NewAddCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add <conversation-id> <memory>",
		Short: "Add a memory for a character",
		Long: `Store a long-term memory for a character. Memories relevant to a user
message are recalled and offered to the model on later turns.

Examples:
  roleplay add ayla "Sam is afraid of heights."
  roleplay add ayla Sam owes Ayla three silver coins`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			m, err := models.NewMemory(id, id, strings.Join(args[1:], " "))
			if err != nil {
				return err
			}

			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer closeApp(cmd, a)

			if err := a.DB.Memories().Save(m); err != nil {
				return fmt.Errorf("saving memory: %w", err)
			}
			if outputFormat == "json" {
				return printJSON(cmd.OutOrStdout(), m)
			}
			if !quiet {
				fmt.Fprintf(cmd.OutOrStdout(), "Stored memory %s\n", m.ID)
			}
			return nil
		},
	}
}

// NewRecallCmd creates the recall command
func NewRecallCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "recall <conversation-id> <query>",
		Short: "Show the memories a message would recall",
		Long: `Score a character's memories against a query and show the best matches.

Examples:
  roleplay recall ayla "heights"
  roleplay recall ayla "coins" --limit 3 --format json`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validatePositiveInt(recallLimit, "limit"); err != nil {
				return err
			}

			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer closeApp(cmd, a)

			id := args[0]
			results, err := a.DB.Memories().SearchMemories(cmd.Context(), strings.Join(args[1:], " "), id, id, recallLimit)
			if err != nil {
				return fmt.Errorf("recalling: %w", err)
			}

			if outputFormat == "json" {
				return printJSON(cmd.OutOrStdout(), results)
			}
			if len(results) == 0 {
				if !quiet {
					fmt.Fprintln(cmd.OutOrStdout(), "No memories found")
				}
				return nil
			}
			for i, r := range results {
				fmt.Fprintf(cmd.OutOrStdout(), "%d. [%.2f] %s\n", i+1, r.Score, r.Memory)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&recallLimit, "limit", "n", 5, "Maximum number of memories")

	return cmd
}
