// ABOUTME: CLI command to list conversations
// ABOUTME: Shows each character with its message count and last activity
package commands

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/harper/roleplay-core/internal/app"
	"github.com/harper/roleplay-core/internal/core"
)

// ConversationInfo summarizes one conversation for listing
type ConversationInfo struct {
	ID         string    `json:"conversation_id"`
	Name       string    `json:"name"`
	Messages   int       `json:"messages"`
	LastActive time.Time `json:"last_active,omitempty"`
}

// NewListCmd creates list command
func NewListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List conversations",
		Long: `List every stored conversation with its character name, message
count and last activity.

Examples:
  roleplay list
  roleplay list --format json`,
		RunE: runList,
	}
}

func runList(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer closeApp(cmd, a)

	infos, err := listConversations(cmd, a)
	if err != nil {
		return err
	}

	if len(infos) == 0 {
		if !quiet {
			fmt.Fprintf(cmd.OutOrStdout(), "No conversations found\n")
		}
		return nil
	}

	if outputFormat == "json" {
		return printJSON(cmd.OutOrStdout(), infos)
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "ID\tNAME\tMESSAGES\tLAST ACTIVE\n")
	fmt.Fprintf(w, "--\t----\t--------\t-----------\n")
	for _, info := range infos {
		last := "-"
		if !info.LastActive.IsZero() {
			last = formatTime(info.LastActive)
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", truncate(info.ID, 25), truncate(info.Name, 30), info.Messages, last)
	}
	_ = w.Flush()

	if !quiet {
		fmt.Fprintf(cmd.OutOrStdout(), "\nTotal: %d conversation(s)\n", len(infos))
	}
	return nil
}

func listConversations(cmd *cobra.Command, a *app.App) ([]ConversationInfo, error) {
	ids, err := a.Orchestrator.List(cmd.Context())
	if err != nil {
		return nil, fmt.Errorf("listing conversations: %w", err)
	}

	infos := make([]ConversationInfo, 0, len(ids))
	for _, id := range ids {
		info := ConversationInfo{ID: id, Name: id}
		if card, err := a.Conversations.LoadRoleCard(id); err == nil && card != nil {
			info.Name = card.WithDefaults().Name
		}
		if history, err := a.Orchestrator.History(cmd.Context(), id); err == nil {
			messages := core.Transcript(history)
			info.Messages = len(messages)
			for _, m := range messages {
				if m.Timestamp > 0 {
					if t := time.UnixMilli(m.Timestamp); t.After(info.LastActive) {
						info.LastActive = t
					}
				}
			}
		}
		infos = append(infos, info)
	}
	return infos, nil
}
