// ABOUTME: Persona command managing global and per-character user personas
// ABOUTME: Personas are injected as dynamic entries describing the user to the character
package commands

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/harper/roleplay-core/internal/models"
)

var (
	personaCharacter string
	personaContent   string
	personaComment   string
	personaPosition  int
	personaDepth     int
	personaDisable   bool
)

// NewPersonaCmd creates the persona command group
func NewPersonaCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "persona",
		Short: "Manage user personas",
		Long: `Manage the persona describing you to characters.

The global persona applies to every conversation. A per-character persona
set with --character is used for that conversation in addition.`,
	}

	cmd.AddCommand(newPersonaSetCmd())
	cmd.AddCommand(newPersonaShowCmd())

	return cmd
}

func newPersonaSetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set",
		Short: "Set the global or a per-character persona",
		Long: `Set the global persona, or a per-character one with --character.

Examples:
  roleplay persona set --content "I am a courier named Sam."
  roleplay persona set --character ayla --content "Ayla knows me as her cousin." --depth 2
  roleplay persona set --character ayla --disable`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if personaContent == "" && !personaDisable {
				return fmt.Errorf("--content is required unless --disable is set")
			}

			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer closeApp(cmd, a)

			persona := &models.PersonaOverride{
				Enabled:  !personaDisable,
				Global:   personaCharacter == "",
				Comment:  personaComment,
				Content:  personaContent,
				Position: personaPosition,
				Depth:    personaDepth,
			}
			if err := a.Conversations.SavePersona(personaCharacter, persona); err != nil {
				return fmt.Errorf("saving persona: %w", err)
			}

			if !quiet {
				scope := "global persona"
				if personaCharacter != "" {
					scope = "persona for " + personaCharacter
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Saved %s\n", scope)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&personaCharacter, "character", "", "Conversation ID (default: global)")
	cmd.Flags().StringVar(&personaContent, "content", "", "Persona text")
	cmd.Flags().StringVar(&personaComment, "comment", "", "Entry name")
	cmd.Flags().IntVar(&personaPosition, "position", 0, "Insertion position (0-4)")
	cmd.Flags().IntVar(&personaDepth, "depth", 0, "Injection depth for position 4")
	cmd.Flags().BoolVar(&personaDisable, "disable", false, "Store the persona disabled")

	return cmd
}

func newPersonaShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the global or a per-character persona",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer closeApp(cmd, a)

			var raw []byte
			if personaCharacter == "" {
				raw, err = a.Conversations.GlobalPersona()
			} else {
				raw, err = a.Conversations.CharacterPersona(personaCharacter)
			}
			if err != nil {
				return fmt.Errorf("loading persona: %w", err)
			}
			if raw == nil {
				if !quiet {
					fmt.Fprintln(cmd.OutOrStdout(), "No persona set")
				}
				return nil
			}

			var persona models.PersonaOverride
			if err := json.Unmarshal(raw, &persona); err != nil {
				return fmt.Errorf("persona record is malformed: %w", err)
			}
			if outputFormat == "json" {
				return printJSON(cmd.OutOrStdout(), persona)
			}
			state := "enabled"
			if !persona.Enabled {
				state = "disabled"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Persona (%s, position %d): %s\n", state, persona.Position, persona.Content)
			return nil
		},
	}

	cmd.Flags().StringVar(&personaCharacter, "character", "", "Conversation ID (default: global)")

	return cmd
}
