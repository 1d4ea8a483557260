// ABOUTME: Websocket chat stream for one conversation
// ABOUTME: Reads chat and regenerate frames in order and pushes state and reply frames back
package api

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/harper/roleplay-core/internal/core"
)

const (
	wsPongWait  = 60 * time.Second
	wsWriteWait = 10 * time.Second
	wsReadLimit = 1 << 20
)

// Frame types
const (
	FrameChat       = "chat"
	FrameRegenerate = "regenerate"
	FramePing       = "ping"
	FramePong       = "pong"
	FrameState      = "state"
	FrameReply      = "reply"
	FrameError      = "error"
	FrameWelcome    = "welcome"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Frame is one websocket message in either direction
type Frame struct {
	Type     string `json:"type"`
	Message  string `json:"message,omitempty"`
	UserName string `json:"user_name,omitempty"`
	Tools    bool   `json:"tools,omitempty"`
	Index    int    `json:"index,omitempty"`
	Reply    string `json:"reply,omitempty"`
	State    string `json:"state,omitempty"`
	Error    string `json:"error,omitempty"`
}

// wsConn serializes writes; gorilla allows one concurrent writer
type wsConn struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (w *wsConn) send(f Frame) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	_ = w.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return w.conn.WriteJSON(f)
}

func (w *wsConn) ping() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait))
}

// ChatWebSocket upgrades the request and runs turns for the conversation in :id
func (s *Server) ChatWebSocket(c *gin.Context) {
	id := c.Param("id")
	if _, err := s.orch.History(c.Request.Context(), id); err != nil {
		s.fail(c, err)
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	ws := &wsConn{conn: conn}
	defer func() { _ = conn.Close() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.keepAlive(ctx, ws)

	conn.SetReadLimit(wsReadLimit)
	_ = conn.SetReadDeadline(time.Now().Add(s.pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(s.pongWait))
	})

	if err := ws.send(Frame{Type: FrameWelcome, State: s.orch.State(id).String()}); err != nil {
		return
	}

	for {
		var in Frame
		if err := conn.ReadJSON(&in); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Debug("websocket read failed", zap.String("conversation", id), zap.Error(err))
			}
			return
		}
		// Nothing reads while a turn runs, so pongs cannot extend the deadline.
		// Clear it for the turn and re-arm once the socket is read again.
		_ = conn.SetReadDeadline(time.Time{})
		if err := s.handleFrame(ctx, ws, id, in); err != nil {
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(s.pongWait))
	}
}

// handleFrame runs one inbound frame; a returned error means the socket is gone
func (s *Server) handleFrame(ctx context.Context, ws *wsConn, id string, in Frame) error {
	switch in.Type {
	case FramePing:
		return ws.send(Frame{Type: FramePong})

	case FrameChat:
		if err := ws.send(Frame{Type: FrameState, State: core.AwaitingResponse.String()}); err != nil {
			return err
		}
		reply, err := s.orch.ContinueChat(ctx, id, in.Message, core.ChatOptions{UserName: in.UserName, Tools: in.Tools})
		return s.sendResult(ws, reply, 0, err)

	case FrameRegenerate:
		if err := ws.send(Frame{Type: FrameState, State: core.Regenerating.String()}); err != nil {
			return err
		}
		reply, err := s.orch.RegenerateFromMessage(ctx, id, in.Index, core.ChatOptions{UserName: in.UserName})
		return s.sendResult(ws, reply, in.Index, err)

	default:
		return ws.send(Frame{Type: FrameError, Error: "unknown frame type: " + in.Type})
	}
}

func (s *Server) sendResult(ws *wsConn, reply string, index int, err error) error {
	if err != nil {
		return ws.send(Frame{Type: FrameError, Error: err.Error()})
	}
	if err := ws.send(Frame{Type: FrameReply, Reply: reply, Index: index}); err != nil {
		return err
	}
	return ws.send(Frame{Type: FrameState, State: core.Idle.String()})
}

func (s *Server) keepAlive(ctx context.Context, ws *wsConn) {
	ticker := time.NewTicker(s.pongWait * 9 / 10)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := ws.ping(); err != nil {
				return
			}
		}
	}
}
