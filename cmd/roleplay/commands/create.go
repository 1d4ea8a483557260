// ABOUTME: Create and import commands for character bundles
// ABOUTME: Import can watch a directory and upsert characters as their files change
package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/harper/roleplay-core/internal/app"
	"github.com/harper/roleplay-core/internal/bundle"
	"github.com/harper/roleplay-core/internal/core"
	"github.com/harper/roleplay-core/internal/models"
)

var (
	createID    string
	importWatch bool
)

// NewCreateCmd creates the create command
func NewCreateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create <bundle-file>",
		Short: "Create a conversation from a character bundle",
		Long: `Create a conversation from a character bundle file.

Bundles are JSON, YAML or TOML documents with a role_card and optional
world_book, preset, author_note and persona sections. A file holding only
a role card is accepted too. The conversation ID defaults to the file name.

Examples:
  roleplay create ayla.yaml
  roleplay create ayla.json --id ayla-2`,
		Args: cobra.ExactArgs(1),
		RunE: runCreate,
	}

	cmd.Flags().StringVar(&createID, "id", "", "Conversation ID (default: bundle id or file name)")

	return cmd
}

func runCreate(cmd *cobra.Command, args []string) error {
	b, err := bundle.Load(args[0])
	if err != nil {
		return err
	}

	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer closeApp(cmd, a)

	id := createID
	if id == "" {
		id = b.ID
	}
	id, err = a.Orchestrator.CreateCharacter(cmd.Context(), id, b)
	if err != nil {
		return fmt.Errorf("creating character: %w", err)
	}

	if outputFormat == "json" {
		return printJSON(cmd.OutOrStdout(), map[string]string{"conversation_id": id, "name": b.RoleCard.Name})
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created %s (%s)\n", id, b.RoleCard.Name)
	return nil
}

// NewImportCmd creates the import command
func NewImportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <dir>",
		Short: "Import every character bundle in a directory",
		Long: `Import every JSON, YAML and TOML bundle in a directory.

Existing conversations keep their history; their character entities are
replaced and the prompt framework rebuilt. With --watch the directory is
watched and changed files are re-imported until interrupted.

Examples:
  roleplay import ./characters
  roleplay import ./characters --watch`,
		Args: cobra.ExactArgs(1),
		RunE: runImport,
	}

	cmd.Flags().BoolVar(&importWatch, "watch", false, "Keep watching the directory for changes")

	return cmd
}

func runImport(cmd *cobra.Command, args []string) error {
	dir := args[0]
	results, err := bundle.LoadDir(dir)
	if err != nil {
		return err
	}

	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer closeApp(cmd, a)

	failed := 0
	for _, r := range results {
		if !upsert(cmd, a, r) {
			failed++
		}
	}
	if !quiet {
		fmt.Fprintf(cmd.OutOrStdout(), "Imported %d of %d bundle(s)\n", len(results)-failed, len(results))
	}

	if !importWatch {
		if failed > 0 {
			return fmt.Errorf("%d bundle(s) failed to import", failed)
		}
		return nil
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if !quiet {
		fmt.Fprintf(cmd.OutOrStdout(), "Watching %s (Ctrl+C to stop)\n", dir)
	}
	w := bundle.NewWatcher(dir, 0, a.Logger.Named("watch"))
	return w.Run(ctx, func(r bundle.Loaded) { upsert(cmd, a, r) })
}

// upsert creates or updates the conversation for one loaded bundle
func upsert(cmd *cobra.Command, a *app.App, r bundle.Loaded) bool {
	if r.Err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "Warning: %s: %v\n", r.Path, r.Err)
		return false
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	err := a.Orchestrator.UpdateCharacter(ctx, r.Bundle.ID, r.Bundle)
	action := "Updated"
	if errors.Is(err, core.ErrDataIntegrity) {
		_, err = a.Orchestrator.CreateCharacter(ctx, r.Bundle.ID, r.Bundle)
		action = "Created"
	}
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "Warning: %s: %v\n", r.Path, err)
		return false
	}
	if !quiet {
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s (%s)\n", action, r.Bundle.ID, displayName(r.Bundle))
	}
	return true
}

func displayName(b *models.CharacterBundle) string {
	return b.RoleCard.WithDefaults().Name
}
