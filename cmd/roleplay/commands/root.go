// ABOUTME: Root CLI command, global flags and shared application setup
// ABOUTME: Every subcommand opens the app through openApp so wiring stays in one place
package commands

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/harper/roleplay-core/internal/app"
	"github.com/harper/roleplay-core/internal/config"
)

var (
	verbose      bool
	quiet        bool
	outputFormat string
)

const banner = `
██████╗  ██████╗ ██╗     ███████╗██████╗ ██╗      █████╗ ██╗   ██╗
██╔══██╗██╔═══██╗██║     ██╔════╝██╔══██╗██║     ██╔══██╗╚██╗ ██╔╝
██████╔╝██║   ██║██║     █████╗  ██████╔╝██║     ███████║ ╚████╔╝
██╔══██╗██║   ██║██║     ██╔══╝  ██╔═══╝ ██║     ██╔══██║  ╚██╔╝
██║  ██║╚██████╔╝███████╗███████╗██║     ███████╗██║  ██║   ██║
╚═╝  ╚═╝ ╚═════╝ ╚══════╝╚══════╝╚═╝     ╚══════╝╚═╝  ╚═╝   ╚═╝
`

// appFactory opens the application; tests replace it with an in-memory build
var appFactory = defaultApp

// NewRootCmd creates the root command with every subcommand attached
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "roleplay",
		Short: "Character role-play conversations over LLM backends",
		Long: banner + `
Run long-lived role-play conversations with characters defined by role
cards, world books, presets and author notes. Dynamic world entries are
merged into the history on every turn and long histories are summarized.

Configuration is read from ~/.config/roleplay/config.toml, $ROLEPLAY_CONFIG
and ROLEPLAY_* environment variables.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	cmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Suppress informational output")
	cmd.PersistentFlags().StringVar(&outputFormat, "format", "auto", "Output format: auto, json")
	cmd.MarkFlagsMutuallyExclusive("verbose", "quiet")

	cmd.AddCommand(
		NewVersionCmd(),
		NewCreateCmd(),
		NewImportCmd(),
		NewChatCmd(),
		NewRegenerateCmd(),
		NewHistoryCmd(),
		NewEditCmd(),
		NewResetCmd(),
		NewRestoreCmd(),
		NewDeleteCmd(),
		NewListCmd(),
		NewExportCmd(),
		NewPersonaCmd(),
		NewAddCmd(),
		NewRecallCmd(),
		NewTableCmd(),
		NewSearchCmd(),
		NewSyncCmd(),
		NewServeCmd(),
		NewMCPCmd(),
	)

	return cmd
}

// Execute runs the root command
func Execute() error {
	return NewRootCmd().Execute()
}

// newLogger builds the CLI logger; --verbose switches to debug level
func newLogger() (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.OutputPaths = []string{"stderr"}
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	} else {
		cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	}
	return cfg.Build()
}

func defaultApp(cmd *cobra.Command) (*app.App, error) {
	// .env is optional
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	logger, err := newLogger()
	if err != nil {
		return nil, fmt.Errorf("building logger: %w", err)
	}
	return app.New(cfg, versionInfo.Version, logger)
}

// openApp opens the application for a command; callers must Close it
func openApp(cmd *cobra.Command) (*app.App, error) {
	a, err := appFactory(cmd)
	if err != nil {
		return nil, fmt.Errorf("initializing: %w", err)
	}
	return a, nil
}

// closeApp closes a and reports failures without masking the command's result
func closeApp(cmd *cobra.Command, a *app.App) {
	if err := a.Close(); err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "Warning: closing: %v\n", err)
	}
}
