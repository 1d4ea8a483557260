// ABOUTME: REST handlers translating HTTP requests into orchestrator calls
// ABOUTME: Wraps every result in the APIResponse envelope with stable error codes
package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/harper/roleplay-core/internal/core"
	"github.com/harper/roleplay-core/internal/gateway"
	"github.com/harper/roleplay-core/internal/models"
	"github.com/harper/roleplay-core/internal/storage"
)

// Error codes
const (
	ErrorBadRequest       = "BAD_REQUEST"
	ErrorNotFound         = "NOT_FOUND"
	ErrorInternalError    = "INTERNAL_ERROR"
	ErrorInvalidIndex     = "INVALID_INDEX"
	ErrorNoResponse       = "NO_RESPONSE"
	ErrorNotConfigured    = "BACKEND_NOT_CONFIGURED"
	ErrorCharacterInvalid = "CHARACTER_INVALID"
)

// APIResponse is the envelope of every JSON response
type APIResponse struct {
	Success   bool        `json:"success"`
	Data      interface{} `json:"data,omitempty"`
	Error     *APIError   `json:"error,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// APIError is the error body
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ChatRequest is the body of a chat turn
type ChatRequest struct {
	Message  string `json:"message" binding:"required"`
	UserName string `json:"user_name"`
	Tools    bool   `json:"tools"`
}

// RegenerateRequest is the body of a regenerate call
type RegenerateRequest struct {
	Index    int    `json:"index"`
	UserName string `json:"user_name"`
}

// EditRequest is the body of a message edit
type EditRequest struct {
	Text string `json:"text" binding:"required"`
}

func success(c *gin.Context, status int, data interface{}) {
	c.JSON(status, &APIResponse{Success: true, Data: data, Timestamp: time.Now()})
}

func failure(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, &APIResponse{
		Error:     &APIError{Code: code, Message: message},
		Timestamp: time.Now(),
	})
}

// fail maps orchestrator errors onto HTTP statuses
func (s *Server) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, core.ErrDataIntegrity), errors.Is(err, storage.ErrNotFound):
		failure(c, http.StatusNotFound, ErrorNotFound, err.Error())
	case errors.Is(err, core.ErrInvalidIndex):
		failure(c, http.StatusBadRequest, ErrorInvalidIndex, err.Error())
	case errors.Is(err, core.ErrEmptyMessage):
		failure(c, http.StatusBadRequest, ErrorBadRequest, err.Error())
	case errors.Is(err, gateway.ErrNotConfigured):
		failure(c, http.StatusServiceUnavailable, ErrorNotConfigured, err.Error())
	case errors.Is(err, core.ErrNoResponse):
		failure(c, http.StatusBadGateway, ErrorNoResponse, err.Error())
	default:
		s.logger.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
		failure(c, http.StatusInternalServerError, ErrorInternalError, err.Error())
	}
}

func indexParam(c *gin.Context) (int, bool) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		failure(c, http.StatusBadRequest, ErrorInvalidIndex, "index must be an integer")
		return 0, false
	}
	return index, true
}

// Health reports liveness
func (s *Server) Health(c *gin.Context) {
	success(c, http.StatusOK, gin.H{"status": "ok"})
}

// ListConversations returns every conversation id
func (s *Server) ListConversations(c *gin.Context) {
	ids, err := s.orch.List(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	success(c, http.StatusOK, gin.H{"conversations": ids})
}

// CreateConversation creates a character from a bundle body. ?id= sets the id.
func (s *Server) CreateConversation(c *gin.Context) {
	var bundle models.CharacterBundle
	if err := c.ShouldBindJSON(&bundle); err != nil {
		failure(c, http.StatusBadRequest, ErrorBadRequest, err.Error())
		return
	}
	if err := bundle.Validate(); err != nil {
		failure(c, http.StatusBadRequest, ErrorCharacterInvalid, err.Error())
		return
	}

	id, err := s.orch.CreateCharacter(c.Request.Context(), c.Query("id"), &bundle)
	if err != nil {
		s.fail(c, err)
		return
	}
	history, err := s.orch.History(c.Request.Context(), id)
	if err != nil {
		s.fail(c, err)
		return
	}
	success(c, http.StatusCreated, gin.H{
		"conversation_id": id,
		"messages":        core.Transcript(history),
	})
}

// GetConversation returns the visible transcript
func (s *Server) GetConversation(c *gin.Context) {
	id := c.Param("id")
	history, err := s.orch.History(c.Request.Context(), id)
	if err != nil {
		s.fail(c, err)
		return
	}
	success(c, http.StatusOK, gin.H{
		"conversation_id": id,
		"state":           s.orch.State(id).String(),
		"messages":        core.Transcript(history),
	})
}

// UpdateConversation replaces the character entities and rebuilds the framework
func (s *Server) UpdateConversation(c *gin.Context) {
	var bundle models.CharacterBundle
	if err := c.ShouldBindJSON(&bundle); err != nil {
		failure(c, http.StatusBadRequest, ErrorBadRequest, err.Error())
		return
	}
	if err := bundle.Validate(); err != nil {
		failure(c, http.StatusBadRequest, ErrorCharacterInvalid, err.Error())
		return
	}

	id := c.Param("id")
	if err := s.orch.UpdateCharacter(c.Request.Context(), id, &bundle); err != nil {
		s.fail(c, err)
		return
	}
	success(c, http.StatusOK, gin.H{"conversation_id": id})
}

// DeleteConversation removes everything stored for a conversation
func (s *Server) DeleteConversation(c *gin.Context) {
	id := c.Param("id")
	if err := s.orch.DeleteCharacterData(c.Request.Context(), id); err != nil {
		s.fail(c, err)
		return
	}
	success(c, http.StatusOK, gin.H{"conversation_id": id})
}

// Chat runs one turn
func (s *Server) Chat(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		failure(c, http.StatusBadRequest, ErrorBadRequest, err.Error())
		return
	}

	id := c.Param("id")
	reply, err := s.orch.ContinueChat(c.Request.Context(), id, req.Message, core.ChatOptions{
		UserName: req.UserName,
		Tools:    req.Tools,
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	success(c, http.StatusOK, gin.H{"conversation_id": id, "reply": reply})
}

// Regenerate replaces an AI reply
func (s *Server) Regenerate(c *gin.Context) {
	var req RegenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		failure(c, http.StatusBadRequest, ErrorBadRequest, err.Error())
		return
	}

	id := c.Param("id")
	reply, err := s.orch.RegenerateFromMessage(c.Request.Context(), id, req.Index, core.ChatOptions{UserName: req.UserName})
	if err != nil {
		s.fail(c, err)
		return
	}
	success(c, http.StatusOK, gin.H{"conversation_id": id, "index": req.Index, "reply": reply})
}

// Reset clears the conversation back to the first message
func (s *Server) Reset(c *gin.Context) {
	id := c.Param("id")
	history, err := s.orch.ResetChatHistory(c.Request.Context(), id)
	if err != nil {
		s.fail(c, err)
		return
	}
	success(c, http.StatusOK, gin.H{"conversation_id": id, "messages": core.Transcript(history)})
}

// EditMessage replaces the text of an AI message
func (s *Server) EditMessage(c *gin.Context) {
	index, ok := indexParam(c)
	if !ok {
		return
	}
	var req EditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		failure(c, http.StatusBadRequest, ErrorBadRequest, err.Error())
		return
	}

	if err := s.orch.EditAIMessage(c.Request.Context(), c.Param("id"), index, req.Text); err != nil {
		s.fail(c, err)
		return
	}
	success(c, http.StatusOK, gin.H{"index": index})
}

// DeleteMessage removes an AI message and the user message it answered
func (s *Server) DeleteMessage(c *gin.Context) {
	index, ok := indexParam(c)
	if !ok {
		return
	}
	if err := s.orch.DeleteAIMessage(c.Request.Context(), c.Param("id"), index); err != nil {
		s.fail(c, err)
		return
	}
	success(c, http.StatusOK, gin.H{"index": index})
}
