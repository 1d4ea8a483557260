// ABOUTME: Serve command running the REST and websocket API
// ABOUTME: Shuts the HTTP server down and drains background work on SIGINT or SIGTERM
package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/harper/roleplay-core/internal/api"
)

var serveAddr string

// NewServeCmd creates the serve command
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		Long: `Start the HTTP API server.

Conversations are exposed under /api/conversations and a websocket chat
stream is available at /ws/<conversation-id>.`,
		Example: `  roleplay serve
  roleplay serve --addr 127.0.0.1:9090`,
		RunE: runServe,
	}

	cmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (default from config)")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer closeApp(cmd, a)

	addr := serveAddr
	if addr == "" {
		addr = a.Config.Server.Addr
	}
	if !verbose {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if !quiet {
		fmt.Fprintf(cmd.ErrOrStderr(), "Listening on %s\n", addr)
	}
	return api.NewServer(a.Orchestrator, a.Logger.Named("api")).Run(ctx, addr)
}
