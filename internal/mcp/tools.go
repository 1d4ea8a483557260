// ABOUTME: MCP tool definitions and registration for the roleplay server
// ABOUTME: Exposes chat, history editing, character lifecycle and web search as tools
package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/harper/roleplay-core/internal/core"
)

func conversationIDProperty() map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"description": "Conversation (character) ID",
	}
}

func indexProperty() map[string]interface{} {
	return map[string]interface{}{
		"type":        "number",
		"description": "1-based index of the AI message, as shown by get_history",
	}
}

// RegisterTools registers all MCP tools with the server
func RegisterTools(server *mcpserver.MCPServer, orch *core.Orchestrator, searcher Searcher) *Handlers {
	handlers := NewHandlers(orch, searcher)

	server.AddTool(mcp.Tool{
		Name:        "chat",
		Description: "Send a user message to a character and return the character's reply.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"conversation_id": conversationIDProperty(),
				"message": map[string]interface{}{
					"type":        "string",
					"description": "User message",
				},
				"user_name": map[string]interface{}{
					"type":        "string",
					"description": "Name substituted for {{user}} (default: User)",
				},
				"tools": map[string]interface{}{
					"type":        "boolean",
					"description": "Allow memory and web search augmentation for this turn",
					"default":     false,
				},
			},
			Required: []string{"conversation_id", "message"},
		},
	}, handlers.Chat)

	server.AddTool(mcp.Tool{
		Name:        "regenerate",
		Description: "Discard an AI reply and everything after it, then generate a new reply to the same user message.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"conversation_id": conversationIDProperty(),
				"index":           indexProperty(),
			},
			Required: []string{"conversation_id", "index"},
		},
	}, handlers.Regenerate)

	server.AddTool(mcp.Tool{
		Name:        "reset_chat",
		Description: "Clear a conversation back to the character's first message.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"conversation_id": conversationIDProperty(),
			},
			Required: []string{"conversation_id"},
		},
	}, handlers.ResetChat)

	server.AddTool(mcp.Tool{
		Name:        "get_history",
		Description: "Get the visible transcript of a conversation with AI message indexes.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"conversation_id": conversationIDProperty(),
			},
			Required: []string{"conversation_id"},
		},
	}, handlers.GetHistory)

	server.AddTool(mcp.Tool{
		Name:        "list_conversations",
		Description: "List every stored conversation ID.",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, handlers.ListConversations)

	server.AddTool(mcp.Tool{
		Name:        "create_character",
		Description: "Create a conversation from a character bundle (role_card, world_book, preset, author_note, persona).",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"conversation_id": map[string]interface{}{
					"type":        "string",
					"description": "Optional ID; generated when omitted",
				},
				"bundle": map[string]interface{}{
					"type":        "object",
					"description": "Character bundle with at least role_card.name",
				},
			},
			Required: []string{"bundle"},
		},
	}, handlers.CreateCharacter)

	server.AddTool(mcp.Tool{
		Name:        "edit_message",
		Description: "Replace the text of an AI message.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"conversation_id": conversationIDProperty(),
				"index":           indexProperty(),
				"text": map[string]interface{}{
					"type":        "string",
					"description": "New message text",
				},
			},
			Required: []string{"conversation_id", "index", "text"},
		},
	}, handlers.EditMessage)

	server.AddTool(mcp.Tool{
		Name:        "delete_message",
		Description: "Delete an AI message together with the user message it answered.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"conversation_id": conversationIDProperty(),
				"index":           indexProperty(),
			},
			Required: []string{"conversation_id", "index"},
		},
	}, handlers.DeleteMessage)

	server.AddTool(mcp.Tool{
		Name:        "delete_character",
		Description: "Delete a conversation with its character, history, memories and fact tables.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"conversation_id": conversationIDProperty(),
			},
			Required: []string{"conversation_id"},
		},
	}, handlers.DeleteCharacter)

	if searcher != nil {
		server.AddTool(mcp.Tool{
			Name:        "web_search",
			Description: "Search the web and return titles, links and snippets.",
			InputSchema: mcp.ToolInputSchema{
				Type: "object",
				Properties: map[string]interface{}{
					"query": map[string]interface{}{
						"type":        "string",
						"description": "Search query",
					},
					"count": map[string]interface{}{
						"type":        "number",
						"description": "Maximum number of results (default: 5, max: 10)",
						"default":     5,
					},
				},
				Required: []string{"query"},
			},
		}, handlers.WebSearch)
	}

	return handlers
}
