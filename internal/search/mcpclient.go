// ABOUTME: Local MCP search tool client speaking JSON-RPC over a child process's stdio
// ABOUTME: Implements the gateway's local search tier by calling the web_search tool
package search

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
	"go.uber.org/zap"
)

// ToolName is the tool invoked on the local MCP server
const ToolName = "web_search"

// ErrNotConnected is returned when Search runs before Connect
var ErrNotConnected = errors.New("mcp search client not connected")

// toolCaller is the slice of the mcp-go client used here
type toolCaller interface {
	Initialize(ctx context.Context, request mcp.InitializeRequest) (*mcp.InitializeResult, error)
	CallTool(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error)
	Close() error
}

// MCPClient launches a local MCP server and calls its web_search tool
type MCPClient struct {
	command string
	args    []string
	env     []string
	version string
	logger  *zap.Logger

	dial func(command string, env []string, args ...string) (toolCaller, error)

	mu   sync.Mutex
	conn toolCaller
}

// NewMCPClient prepares a client for the given command; nothing starts until Connect
func NewMCPClient(command string, args []string, version string, logger *zap.Logger) *MCPClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MCPClient{
		command: command,
		args:    args,
		version: version,
		logger:  logger,
		dial: func(command string, env []string, args ...string) (toolCaller, error) {
			return client.NewStdioMCPClient(command, env, args...)
		},
	}
}

// Connect starts the child process and performs the MCP handshake.
// Calling it on a connected client is a no-op.
func (c *MCPClient) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil {
		return nil
	}
	if strings.TrimSpace(c.command) == "" {
		return errors.New("mcp search command is not configured")
	}

	conn, err := c.dial(c.command, c.env, c.args...)
	if err != nil {
		return fmt.Errorf("failed to start mcp server: %w", err)
	}

	req := mcp.InitializeRequest{}
	req.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	req.Params.ClientInfo = mcp.Implementation{Name: "roleplay", Version: c.version}
	if _, err := conn.Initialize(ctx, req); err != nil {
		_ = conn.Close()
		return fmt.Errorf("mcp initialize failed: %w", err)
	}

	c.conn = conn
	c.logger.Info("connected to local search server", zap.String("command", c.command))
	return nil
}

// Search calls web_search with query and count and returns the tool's text output
func (c *MCPClient) Search(ctx context.Context, query string, count int) (string, error) {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return "", ErrNotConnected
	}

	req := mcp.CallToolRequest{}
	req.Params.Name = ToolName
	req.Params.Arguments = map[string]any{
		"query": query,
		"count": count,
	}

	result, err := conn.CallTool(ctx, req)
	if err != nil {
		return "", fmt.Errorf("web_search call failed: %w", err)
	}

	text := resultText(result)
	if result.IsError {
		return "", fmt.Errorf("web_search returned an error: %s", text)
	}
	return text, nil
}

// Close stops the child process
func (c *MCPClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

// Connected reports whether the handshake has completed
func (c *MCPClient) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

func resultText(result *mcp.CallToolResult) string {
	var parts []string
	for _, content := range result.Content {
		switch tc := content.(type) {
		case mcp.TextContent:
			parts = append(parts, tc.Text)
		case *mcp.TextContent:
			parts = append(parts, tc.Text)
		}
	}
	return strings.Join(parts, "\n")
}
