// ABOUTME: Tests for MCP tool handlers
// ABOUTME: Covers argument validation and round trips through an in-memory orchestrator
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harper/roleplay-core/internal/core"
	"github.com/harper/roleplay-core/internal/gateway"
	"github.com/harper/roleplay-core/internal/storage"
)

type echoGen struct {
	reply string
}

func (g *echoGen) GenerateFor(context.Context, []gateway.Content, gateway.Scope) (string, error) {
	return g.reply, nil
}

func (g *echoGen) GenerateWithTools(context.Context, []gateway.Content, gateway.ToolContext) (string, error) {
	return g.reply + " (tools)", nil
}

func (g *echoGen) GenerateMultimodal(context.Context, []gateway.Content) (string, error) {
	return g.reply, nil
}

func (g *echoGen) Shutdown() error { return nil }

type stubSearcher struct {
	query string
	count int
	err   error
}

func (s *stubSearcher) SearchText(_ context.Context, query string, maxResults int) (string, error) {
	s.query, s.count = query, maxResults
	return "Web search results for: " + query, s.err
}

func newHandlers(t *testing.T, searcher Searcher) *Handlers {
	t.Helper()
	orch := core.New(storage.NewConversations(storage.NewMemoryStore()), &echoGen{reply: "Well met."})
	t.Cleanup(func() { _ = orch.Shutdown() })
	return NewHandlers(orch, searcher)
}

func call(args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotNil(t, res)
	require.NotEmpty(t, res.Content)
	switch c := res.Content[0].(type) {
	case mcp.TextContent:
		return c.Text
	case *mcp.TextContent:
		return c.Text
	}
	t.Fatalf("unexpected content type %T", res.Content[0])
	return ""
}

func decode(t *testing.T, res *mcp.CallToolResult) map[string]interface{} {
	t.Helper()
	require.False(t, res.IsError, resultText(t, res))
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &out))
	return out
}

func createAyla(t *testing.T, h *Handlers) {
	t.Helper()
	res, err := h.CreateCharacter(context.Background(), call(map[string]any{
		"conversation_id": "ayla",
		"bundle": map[string]any{
			"role_card": map[string]any{"name": "Ayla", "first_mes": "Greetings."},
		},
	}))
	require.NoError(t, err)
	out := decode(t, res)
	assert.Equal(t, "ayla", out["conversation_id"])
}

func TestHandlers_RequiredArguments(t *testing.T) {
	h := newHandlers(t, &stubSearcher{})
	ctx := context.Background()

	tests := []struct {
		name    string
		handler func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error)
		args    map[string]any
	}{
		{"chat without id", h.Chat, map[string]any{"message": "hi"}},
		{"chat without message", h.Chat, map[string]any{"conversation_id": "a"}},
		{"chat blank message", h.Chat, map[string]any{"conversation_id": "a", "message": "  "}},
		{"regenerate without index", h.Regenerate, map[string]any{"conversation_id": "a"}},
		{"reset without id", h.ResetChat, map[string]any{}},
		{"history without id", h.GetHistory, map[string]any{}},
		{"create without bundle", h.CreateCharacter, map[string]any{}},
		{"create nameless", h.CreateCharacter, map[string]any{"bundle": map[string]any{"role_card": map[string]any{}}}},
		{"create malformed string", h.CreateCharacter, map[string]any{"bundle": "{"}},
		{"edit without text", h.EditMessage, map[string]any{"conversation_id": "a", "index": 1}},
		{"delete without index", h.DeleteMessage, map[string]any{"conversation_id": "a"}},
		{"delete character without id", h.DeleteCharacter, map[string]any{}},
		{"search without query", h.WebSearch, map[string]any{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := tt.handler(ctx, call(tt.args))
			require.NoError(t, err)
			assert.True(t, res.IsError)
		})
	}
}

func TestHandlers_ChatRoundTrip(t *testing.T) {
	h := newHandlers(t, nil)
	ctx := context.Background()
	createAyla(t, h)

	out := decode(t, mustCall(t, h.Chat, map[string]any{"conversation_id": "ayla", "message": "hello"}))
	assert.Equal(t, "Well met.", out["reply"])

	out = decode(t, mustCall(t, h.Chat, map[string]any{"conversation_id": "ayla", "message": "what is new?", "tools": true}))
	assert.Equal(t, "Well met. (tools)", out["reply"])

	out = decode(t, mustCall(t, h.GetHistory, map[string]any{"conversation_id": "ayla"}))
	assert.Equal(t, "idle", out["state"])
	messages := out["messages"].([]interface{})
	require.Len(t, messages, 5)
	last := messages[4].(map[string]interface{})
	assert.Equal(t, float64(2), last["index"])

	out = decode(t, mustCall(t, h.EditMessage, map[string]any{"conversation_id": "ayla", "index": float64(1), "text": "Edited."}))
	assert.Equal(t, true, out["success"])

	out = decode(t, mustCall(t, h.Regenerate, map[string]any{"conversation_id": "ayla", "index": 2}))
	assert.Equal(t, "Well met.", out["reply"])

	decode(t, mustCall(t, h.DeleteMessage, map[string]any{"conversation_id": "ayla", "index": 2}))
	out = decode(t, mustCall(t, h.GetHistory, map[string]any{"conversation_id": "ayla"}))
	assert.Len(t, out["messages"].([]interface{}), 3)

	out = decode(t, mustCall(t, h.ResetChat, map[string]any{"conversation_id": "ayla"}))
	assert.Len(t, out["messages"].([]interface{}), 1)

	out = decode(t, mustCall(t, h.ListConversations, map[string]any{}))
	assert.Equal(t, []interface{}{"ayla"}, out["conversations"])

	decode(t, mustCall(t, h.DeleteCharacter, map[string]any{"conversation_id": "ayla"}))
	res, err := h.GetHistory(ctx, call(map[string]any{"conversation_id": "ayla"}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestHandlers_CreateFromJSONString(t *testing.T) {
	h := newHandlers(t, nil)
	out := decode(t, mustCall(t, h.CreateCharacter, map[string]any{
		"bundle": `{"role_card": {"name": "Bram", "first_mes": "Hello."}}`,
	}))
	assert.Equal(t, "Bram", out["name"])
	assert.NotEmpty(t, out["conversation_id"])
}

func TestHandlers_ChatUnknownConversation(t *testing.T) {
	h := newHandlers(t, nil)
	res := mustCall(t, h.Chat, map[string]any{"conversation_id": "ghost", "message": "hi"})
	assert.True(t, res.IsError)
	assert.Contains(t, resultText(t, res), "chat failed")
}

func TestHandlers_WebSearch(t *testing.T) {
	s := &stubSearcher{}
	h := newHandlers(t, s)

	res := mustCall(t, h.WebSearch, map[string]any{"query": "golang", "count": 3})
	assert.False(t, res.IsError)
	assert.Equal(t, "Web search results for: golang", resultText(t, res))
	assert.Equal(t, "golang", s.query)
	assert.Equal(t, 3, s.count)

	s.err = errors.New("blocked")
	res = mustCall(t, h.WebSearch, map[string]any{"query": "golang"})
	assert.True(t, res.IsError)
	assert.Equal(t, 5, s.count)

	h = newHandlers(t, nil)
	res = mustCall(t, h.WebSearch, map[string]any{"query": "golang"})
	assert.True(t, res.IsError)
}

func TestRegisterTools(t *testing.T) {
	orch := core.New(storage.NewConversations(storage.NewMemoryStore()), &echoGen{})
	defer func() { _ = orch.Shutdown() }()

	server := mcpserver.NewMCPServer("test", "0.0.0")
	h := RegisterTools(server, orch, &stubSearcher{})
	assert.NotNil(t, h)
}

func mustCall(t *testing.T, handler func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error), args map[string]any) *mcp.CallToolResult {
	t.Helper()
	res, err := handler(context.Background(), call(args))
	require.NoError(t, err)
	return res
}
