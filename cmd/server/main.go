// ABOUTME: Main entry point for the roleplay MCP server with stdio transport
// ABOUTME: Loads config, wires the application and serves the conversation tools
package main

import (
	"log"

	"github.com/joho/godotenv"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/harper/roleplay-core/internal/app"
	"github.com/harper/roleplay-core/internal/config"
	"github.com/harper/roleplay-core/internal/mcp"
)

var version = "dev"

func main() {
	// .env is optional
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logCfg := zap.NewProductionConfig()
	logCfg.OutputPaths = []string{"stderr"}
	logger, err := logCfg.Build()
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	a, err := app.New(cfg, version, logger)
	if err != nil {
		logger.Fatal("failed to initialize", zap.Error(err))
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Warn("close failed", zap.Error(err))
		}
	}()

	server := mcpserver.NewMCPServer("Roleplay", version)
	mcp.RegisterTools(server, a.Orchestrator, a.Search)

	logger.Info("mcp server starting on stdio")
	if err := mcpserver.ServeStdio(server); err != nil {
		logger.Error("server error", zap.Error(err))
	}
}
