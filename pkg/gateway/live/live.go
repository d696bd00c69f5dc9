package live

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/conversai-app/conversai/pkg/gateway/apierror"
	"github.com/conversai-app/conversai/pkg/gateway/config"
	"github.com/conversai-app/conversai/pkg/gateway/session"
)

// Backend is the slice of the conversation service the socket needs.
type Backend interface {
	Create(ctx context.Context, p session.CreateParams) (*session.CreateResult, error)
	AppendUserMessage(ctx context.Context, id, content, audioURL string) (*session.TurnResult, error)
}

// Handler serves /ws. Each connection processes events sequentially; a
// conversation started on the socket is the same document the REST API sees.
type Handler struct {
	Config   config.Config
	Sessions Backend
	Logger   *slog.Logger
}

func (h Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !h.originAllowed(r) {
		http.Error(w, "origin is not allowed", http.StatusForbidden)
		return
	}

	upgrader := websocket.Upgrader{
		CheckOrigin: func(*http.Request) bool { return true },
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	if h.Config.MaxBodyBytes > 0 {
		conn.SetReadLimit(h.Config.MaxBodyBytes)
	}

	c := &client{
		conn:         conn,
		sessions:     h.Sessions,
		logger:       h.logger(),
		writeTimeout: h.Config.WSWriteTimeout,
	}
	c.run(r.Context(), h.Config.WSPingInterval)
}

func (h Handler) originAllowed(r *http.Request) bool {
	origin := strings.TrimSpace(r.Header.Get("Origin"))
	if origin == "" {
		return true
	}
	if len(h.Config.AllowedOrigins) == 0 {
		return false
	}
	_, ok := h.Config.AllowedOrigins[origin]
	return ok
}

func (h Handler) logger() *slog.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

// client owns one websocket connection. Writes are serialized through a
// mutex because the ping loop and the event loop share the connection.
type client struct {
	conn         *websocket.Conn
	sessions     Backend
	logger       *slog.Logger
	writeTimeout time.Duration

	writeMu sync.Mutex
}

func (c *client) run(ctx context.Context, pingInterval time.Duration) {
	done := make(chan struct{})
	defer close(done)
	if pingInterval > 0 {
		go c.pingLoop(pingInterval, done)
	}

	for {
		messageType, frame, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Warn("websocket closed unexpectedly", "error", err)
			}
			return
		}
		if messageType != websocket.TextMessage {
			c.writeError("bad_request", "frames must be text", false)
			continue
		}

		decoded, err := DecodeClientMessage(frame)
		if err != nil {
			var decodeErr *DecodeError
			if errors.As(err, &decodeErr) {
				c.writeError(decodeErr.Code, decodeErr.Error(), false)
			} else {
				c.writeError("bad_request", "invalid frame", false)
			}
			continue
		}

		switch msg := decoded.(type) {
		case StartConversation:
			c.handleStart(ctx, msg)
		case UserMessage:
			c.handleUserMessage(ctx, msg)
		}
	}
}

func (c *client) handleStart(ctx context.Context, msg StartConversation) {
	res, err := c.sessions.Create(ctx, session.CreateParams{
		UserID:          msg.UserID,
		AgentID:         msg.AgentID,
		AgentInfo:       msg.AgentInfo,
		IsCallSimulator: msg.IsCallSimulator,
		Title:           msg.Title,
	})
	if err != nil {
		c.writeServiceError(err)
		return
	}
	started := ConversationStarted{
		Type:           "conversation_started",
		ConversationID: res.Conversation.ID,
		Title:          res.Conversation.Title,
		Messages:       res.Conversation.Messages,
	}
	if len(res.Conversation.Messages) > 0 {
		started.WelcomeMessage = &res.Conversation.Messages[0]
	}
	c.writeJSON(started)
}

func (c *client) handleUserMessage(ctx context.Context, msg UserMessage) {
	c.writeJSON(Typing{Type: "typing", IsTyping: true})
	res, err := c.sessions.AppendUserMessage(ctx, msg.ConversationID, msg.Message, "")
	c.writeJSON(Typing{Type: "typing", IsTyping: false})
	if err != nil {
		c.writeServiceError(err)
		return
	}
	c.writeJSON(AIResponse{
		Type:           "ai_response",
		ConversationID: msg.ConversationID,
		Message:        res.Reply,
		Title:          res.Title,
		TitleUpdated:   res.TitleUpdated,
	})
}

func (c *client) writeServiceError(err error) {
	coreErr, _ := apierror.FromError(err, "")
	c.writeError(string(coreErr.Type), coreErr.Message, false)
}

func (c *client) writeError(code, message string, close bool) {
	c.writeJSON(ServerError{Type: "error", Code: code, Message: message, Close: close})
	if close {
		c.writeMu.Lock()
		_ = c.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, message), time.Now().Add(2*time.Second))
		c.writeMu.Unlock()
	}
}

func (c *client) writeJSON(v any) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.writeTimeout > 0 {
		_ = c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	}
	if err := c.conn.WriteJSON(v); err != nil {
		c.logger.Warn("websocket write failed", "error", err)
	}
}

func (c *client) pingLoop(interval time.Duration, done <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			c.writeMu.Lock()
			err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(2*time.Second))
			c.writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}
