// ABOUTME: History, edit, reset and restore commands
// ABOUTME: Shows the numbered transcript and edits or rewinds stored histories
package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/harper/roleplay-core/internal/core"
	"github.com/harper/roleplay-core/internal/models"
)

var historyRaw bool

// NewHistoryCmd creates the history command
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history <conversation-id>",
		Short: "Show a conversation transcript",
		Long: `Show the visible transcript of a conversation. AI replies are numbered;
those numbers are the indexes used by regenerate, edit and delete --message.

--raw prints the stored history, including dynamic entries, as JSON that
'roleplay restore' accepts.

Examples:
  roleplay history ayla
  roleplay history ayla --format json
  roleplay history ayla --raw > ayla-backup.json`,
		Args: cobra.ExactArgs(1),
		RunE: runHistory,
	}

	cmd.Flags().BoolVar(&historyRaw, "raw", false, "Print the stored history as JSON")

	return cmd
}

func runHistory(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer closeApp(cmd, a)

	id := args[0]
	history, err := a.Orchestrator.History(cmd.Context(), id)
	if err != nil {
		return err
	}

	if historyRaw {
		return printJSON(cmd.OutOrStdout(), history)
	}
	messages := core.Transcript(history)
	if outputFormat == "json" {
		return printJSON(cmd.OutOrStdout(), messages)
	}

	name := id
	if card, err := a.Conversations.LoadRoleCard(id); err == nil && card != nil {
		name = card.WithDefaults().Name
	}
	printTranscript(cmd.OutOrStdout(), name, messages)
	return nil
}

// NewEditCmd creates the edit command
func NewEditCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "edit <conversation-id> <index> <text>",
		Short: "Replace the text of an AI reply",
		Long: `Replace the text of an AI reply in place.

Examples:
  roleplay edit ayla 2 "The road leads north, to the old fort."`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			index, err := parseIndex(args[1])
			if err != nil {
				return err
			}

			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer closeApp(cmd, a)

			if err := a.Orchestrator.EditAIMessage(cmd.Context(), args[0], index, args[2]); err != nil {
				return err
			}
			if !quiet {
				fmt.Fprintf(cmd.OutOrStdout(), "Edited message %d\n", index)
			}
			return nil
		},
	}
}

// NewResetCmd creates the reset command
func NewResetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset <conversation-id>",
		Short: "Clear a conversation back to its first message",
		Long: `Discard every message and start the conversation over from the
character's first message. Memories and fact tables are kept.

Examples:
  roleplay reset ayla`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer closeApp(cmd, a)

			if _, err := a.Orchestrator.ResetChatHistory(cmd.Context(), args[0]); err != nil {
				return err
			}
			if !quiet {
				fmt.Fprintf(cmd.OutOrStdout(), "Reset %s\n", args[0])
			}
			return nil
		},
	}
}

// NewRestoreCmd creates the restore command
func NewRestoreCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "restore <conversation-id> <history-file>",
		Short: "Restore a history saved with 'history --raw'",
		Long: `Replace a conversation's history with one saved by 'roleplay history --raw'.

Examples:
  roleplay restore ayla ayla-backup.json`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[1])
			if err != nil {
				return fmt.Errorf("reading history: %w", err)
			}
			var saved models.ChatHistory
			if err := json.Unmarshal(data, &saved); err != nil {
				return fmt.Errorf("parsing history: %w", err)
			}

			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer closeApp(cmd, a)

			if err := a.Orchestrator.RestoreChatHistory(cmd.Context(), args[0], &saved); err != nil {
				return err
			}
			if !quiet {
				fmt.Fprintf(cmd.OutOrStdout(), "Restored %d message(s) to %s\n", len(core.Transcript(&saved)), args[0])
			}
			return nil
		},
	}
}
