// ABOUTME: Sync commands for Charm cloud synchronization
// ABOUTME: Only available when conversations are stored in the charm backend
package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/harper/roleplay-core/internal/app"
	"github.com/harper/roleplay-core/internal/config"
)

// NewSyncCmd creates the sync command group
func NewSyncCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Manage Charm cloud synchronization",
		Long: `Manage synchronization with Charm cloud.

Set storage.backend = "charm" to keep conversations in a Charm key-value
store that syncs across devices linked to the same Charm account.`,
	}

	cmd.AddCommand(newSyncNowCmd())
	cmd.AddCommand(newSyncStatusCmd())

	return cmd
}

func newSyncNowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "now",
		Short: "Push and pull conversations immediately",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer closeApp(cmd, a)

			if err := a.Sync(); err != nil {
				if errors.Is(err, app.ErrSyncUnavailable) {
					return fmt.Errorf("%w (storage backend is %q)", err, a.Config.Storage.Backend)
				}
				return fmt.Errorf("sync failed: %w", err)
			}
			if !quiet {
				fmt.Fprintln(cmd.OutOrStdout(), "Sync complete")
			}
			return nil
		},
	}
}

func newSyncStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the storage backend and sync settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer closeApp(cmd, a)

			cfg := a.Config
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Storage: %s\n", cfg.Storage.Backend)
			if cfg.Storage.Backend != config.StorageCharm {
				fmt.Fprintln(out, "Sync: unavailable")
				return nil
			}
			fmt.Fprintf(out, "Host: %s\n", cfg.Charm.Host)
			fmt.Fprintf(out, "Auto sync: %t\n", cfg.Charm.AutoSync)
			return nil
		},
	}
}
