// ABOUTME: MCP command starts the Model Context Protocol server
// ABOUTME: Lets LLM agents drive role-play conversations over stdio
package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/harper/roleplay-core/internal/mcp"
)

// NewMCPCmd creates the MCP command
func NewMCPCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Start MCP server for LLM agents",
		Long: `Start MCP server for LLM agents

Runs the role-play engine as an MCP (Model Context Protocol) server so an
agent can create characters, chat, regenerate and edit messages via stdio.`,
		RunE: runMCP,
		Example: `  # Start MCP server (typically called by an agent host)
  roleplay mcp

  # Configure in the host's config file:
  # {
  #   "mcpServers": {
  #     "roleplay": {
  #       "command": "roleplay",
  #       "args": ["mcp"]
  #     }
  #   }
  # }`,
	}
}

func runMCP(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer closeApp(cmd, a)

	server := mcpserver.NewMCPServer("Roleplay", versionInfo.Version)
	mcp.RegisterTools(server, a.Orchestrator, a.Search)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a.Logger.Info("mcp server starting on stdio")

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- mcpserver.ServeStdio(server)
	}()

	select {
	case <-ctx.Done():
		a.Logger.Info("shutdown signal received")
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}
	return nil
}
