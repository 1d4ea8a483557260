// ABOUTME: MCP tool handler implementations for the roleplay server
// ABOUTME: Validates arguments, calls the orchestrator and renders JSON results
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/harper/roleplay-core/internal/core"
	"github.com/harper/roleplay-core/internal/models"
)

// Searcher runs a web search and returns formatted results
type Searcher interface {
	SearchText(ctx context.Context, query string, maxResults int) (string, error)
}

// Handlers contains the handler functions for all MCP tools
type Handlers struct {
	orch     *core.Orchestrator
	searcher Searcher
}

// NewHandlers creates handlers over an orchestrator; searcher may be nil
func NewHandlers(orch *core.Orchestrator, searcher Searcher) *Handlers {
	return &Handlers{orch: orch, searcher: searcher}
}

// Chat handles the chat tool
func (h *Handlers) Chat(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("conversation_id")
	if err != nil {
		return mcp.NewToolResultError("conversation_id argument is required and must be a string"), nil
	}
	message, err := request.RequireString("message")
	if err != nil || strings.TrimSpace(message) == "" {
		return mcp.NewToolResultError("message argument is required and must be a non-empty string"), nil
	}

	opts := core.ChatOptions{
		UserName: request.GetString("user_name", ""),
		Tools:    request.GetBool("tools", false),
	}
	reply, err := h.orch.ContinueChat(ctx, id, message, opts)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("chat failed: %v", err)), nil
	}

	return jsonResult(map[string]interface{}{
		"conversation_id": id,
		"reply":           reply,
	})
}

// Regenerate handles the regenerate tool
func (h *Handlers) Regenerate(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("conversation_id")
	if err != nil {
		return mcp.NewToolResultError("conversation_id argument is required and must be a string"), nil
	}
	index, err := request.RequireInt("index")
	if err != nil {
		return mcp.NewToolResultError("index argument is required and must be a number"), nil
	}

	reply, err := h.orch.RegenerateFromMessage(ctx, id, index, core.ChatOptions{})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("regenerate failed: %v", err)), nil
	}

	return jsonResult(map[string]interface{}{
		"conversation_id": id,
		"index":           index,
		"reply":           reply,
	})
}

// ResetChat handles the reset_chat tool
func (h *Handlers) ResetChat(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("conversation_id")
	if err != nil {
		return mcp.NewToolResultError("conversation_id argument is required and must be a string"), nil
	}

	history, err := h.orch.ResetChatHistory(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("reset failed: %v", err)), nil
	}

	return jsonResult(map[string]interface{}{
		"conversation_id": id,
		"messages":        core.Transcript(history),
	})
}

// GetHistory handles the get_history tool
func (h *Handlers) GetHistory(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("conversation_id")
	if err != nil {
		return mcp.NewToolResultError("conversation_id argument is required and must be a string"), nil
	}

	history, err := h.orch.History(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to load history: %v", err)), nil
	}

	return jsonResult(map[string]interface{}{
		"conversation_id": id,
		"state":           h.orch.State(id).String(),
		"messages":        core.Transcript(history),
	})
}

// ListConversations handles the list_conversations tool
func (h *Handlers) ListConversations(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ids, err := h.orch.List(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list conversations: %v", err)), nil
	}
	if ids == nil {
		ids = []string{}
	}

	return jsonResult(map[string]interface{}{
		"conversations": ids,
	})
}

// CreateCharacter handles the create_character tool
func (h *Handlers) CreateCharacter(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	raw, ok := args["bundle"]
	if !ok || raw == nil {
		return mcp.NewToolResultError("bundle argument is required"), nil
	}

	bundle, err := decodeBundle(raw)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid bundle: %v", err)), nil
	}
	if err := bundle.Validate(); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid bundle: %v", err)), nil
	}

	id, err := h.orch.CreateCharacter(ctx, request.GetString("conversation_id", ""), bundle)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to create character: %v", err)), nil
	}

	return jsonResult(map[string]interface{}{
		"conversation_id": id,
		"name":            bundle.RoleCard.Name,
	})
}

// EditMessage handles the edit_message tool
func (h *Handlers) EditMessage(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("conversation_id")
	if err != nil {
		return mcp.NewToolResultError("conversation_id argument is required and must be a string"), nil
	}
	index, err := request.RequireInt("index")
	if err != nil {
		return mcp.NewToolResultError("index argument is required and must be a number"), nil
	}
	text, err := request.RequireString("text")
	if err != nil {
		return mcp.NewToolResultError("text argument is required and must be a string"), nil
	}

	if err := h.orch.EditAIMessage(ctx, id, index, text); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("edit failed: %v", err)), nil
	}

	return jsonResult(map[string]interface{}{
		"success": true,
		"index":   index,
	})
}

// DeleteMessage handles the delete_message tool
func (h *Handlers) DeleteMessage(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("conversation_id")
	if err != nil {
		return mcp.NewToolResultError("conversation_id argument is required and must be a string"), nil
	}
	index, err := request.RequireInt("index")
	if err != nil {
		return mcp.NewToolResultError("index argument is required and must be a number"), nil
	}

	if err := h.orch.DeleteAIMessage(ctx, id, index); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("delete failed: %v", err)), nil
	}

	return jsonResult(map[string]interface{}{
		"success": true,
		"index":   index,
	})
}

// DeleteCharacter handles the delete_character tool
func (h *Handlers) DeleteCharacter(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("conversation_id")
	if err != nil {
		return mcp.NewToolResultError("conversation_id argument is required and must be a string"), nil
	}

	if err := h.orch.DeleteCharacterData(ctx, id); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("delete failed: %v", err)), nil
	}

	return jsonResult(map[string]interface{}{
		"success":         true,
		"conversation_id": id,
	})
}

// WebSearch handles the web_search tool
func (h *Handlers) WebSearch(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if h.searcher == nil {
		return mcp.NewToolResultError("web search is not configured"), nil
	}
	query, err := request.RequireString("query")
	if err != nil || strings.TrimSpace(query) == "" {
		return mcp.NewToolResultError("query argument is required and must be a non-empty string"), nil
	}
	count := request.GetInt("count", 5)

	text, err := h.searcher.SearchText(ctx, query, count)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("search failed: %v", err)), nil
	}
	return mcp.NewToolResultText(text), nil
}

// decodeBundle accepts the bundle as an object or as a JSON string
func decodeBundle(raw interface{}) (*models.CharacterBundle, error) {
	var data []byte
	switch v := raw.(type) {
	case string:
		data = []byte(v)
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		data = b
	}

	var bundle models.CharacterBundle
	if err := json.Unmarshal(data, &bundle); err != nil {
		return nil, err
	}
	return &bundle, nil
}

func jsonResult(response map[string]interface{}) (*mcp.CallToolResult, error) {
	responseJSON, err := json.Marshal(response)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal response: %v", err)), nil
	}
	return mcp.NewToolResultText(string(responseJSON)), nil
}
