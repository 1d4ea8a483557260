// ABOUTME: Delete command for conversations and single AI replies
// ABOUTME: Whole-conversation deletion also purges memories and fact tables
package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	deleteConfirm bool
	deleteMessage int
)

// NewDeleteCmd creates the delete command
func NewDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <conversation-id>",
		Short: "Delete a conversation or one AI reply",
		Long: `Delete a conversation with its character, history, memories and fact
tables. With --message, delete only that AI reply and the user message it
answered.

Examples:
  roleplay delete ayla --confirm
  roleplay delete ayla --message 2`,
		Args: cobra.ExactArgs(1),
		RunE: runDelete,
	}

	cmd.Flags().BoolVar(&deleteConfirm, "confirm", false, "Confirm deleting the whole conversation")
	cmd.Flags().IntVar(&deleteMessage, "message", 0, "Delete only this AI reply (1-based index)")

	return cmd
}

func runDelete(cmd *cobra.Command, args []string) error {
	id := args[0]
	if deleteMessage == 0 && !deleteConfirm {
		fmt.Fprintf(cmd.OutOrStdout(), "This will delete %s and everything stored for it!\n", id)
		fmt.Fprintln(cmd.OutOrStdout(), "Run with --confirm to proceed")
		return nil
	}

	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer closeApp(cmd, a)

	if deleteMessage != 0 {
		if err := validatePositiveInt(deleteMessage, "message"); err != nil {
			return err
		}
		if err := a.Orchestrator.DeleteAIMessage(cmd.Context(), id, deleteMessage); err != nil {
			return err
		}
		if !quiet {
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted message %d\n", deleteMessage)
		}
		return nil
	}

	if err := a.Orchestrator.DeleteCharacterData(cmd.Context(), id); err != nil {
		return err
	}
	if !quiet {
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", id)
	}
	return nil
}
