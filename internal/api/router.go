// ABOUTME: gin router and HTTP server for the roleplay REST API
// ABOUTME: Routes conversation CRUD, chat turns and the websocket stream to handlers
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/harper/roleplay-core/internal/core"
)

const shutdownTimeout = 10 * time.Second

// Server exposes the orchestrator over HTTP
type Server struct {
	orch   *core.Orchestrator
	logger *zap.Logger
	engine *gin.Engine

	// pongWait bounds how long an idle websocket may go without a frame or pong
	pongWait time.Duration
}

// NewServer builds the router. Callers set gin's mode before calling.
func NewServer(orch *core.Orchestrator, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{orch: orch, logger: logger, pongWait: wsPongWait}
	s.engine = s.setupRouter()
	return s
}

func (s *Server) setupRouter() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(s.logger))

	r.GET("/health", s.Health)
	r.GET("/ws/:id", s.ChatWebSocket)

	api := r.Group("/api")
	{
		conversations := api.Group("/conversations")
		{
			conversations.GET("", s.ListConversations)
			conversations.POST("", s.CreateConversation)
			conversations.GET("/:id", s.GetConversation)
			conversations.PUT("/:id", s.UpdateConversation)
			conversations.DELETE("/:id", s.DeleteConversation)

			conversations.POST("/:id/chat", s.Chat)
			conversations.POST("/:id/regenerate", s.Regenerate)
			conversations.POST("/:id/reset", s.Reset)
			conversations.PUT("/:id/messages/:index", s.EditMessage)
			conversations.DELETE("/:id/messages/:index", s.DeleteMessage)
		}
	}

	return r
}

// Handler returns the HTTP handler
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err, ok := <-serverErr:
		if ok {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// requestLogger logs each request through zap
func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)))
	}
}
