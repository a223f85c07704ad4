package ws

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	chathandler "github.com/diagnobuddy/backend/internal/handler/chat"
	"github.com/diagnobuddy/backend/pkg/apperror"
	"github.com/diagnobuddy/backend/pkg/reveal"
)

const (
	readTimeout  = 60 * time.Second
	pingInterval = 54 * time.Second
	writeTimeout = 10 * time.Second
)

// Handler WebSocket聊天处理器
type Handler struct {
	relay    chathandler.Relay
	sessions chathandler.Sessions
	opts     reveal.Options
	upgrader websocket.Upgrader
}

// New 创建WebSocket处理器
func New(relay chathandler.Relay, sessions chathandler.Sessions, opts reveal.Options) *Handler {
	return &Handler{
		relay:    relay,
		sessions: sessions,
		opts:     opts,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// RegisterRoutes 注册WebSocket路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/ws", h.handleWebSocket)
}

type inboundMessage struct {
	Type      string          `json:"type"`
	SessionID string          `json:"sessionId"`
	Data      json.RawMessage `json:"data"`
}

type outgoingMessage struct {
	Type      string      `json:"type"`
	SessionID string      `json:"sessionId,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

// ReplyMessage carries the final bot reply.
type ReplyMessage struct {
	Text    string          `json:"text"`
	IsFinal bool            `json:"isFinal"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// conn serialises writes; gorilla allows one concurrent writer only.
type conn struct {
	ws *websocket.Conn
	mu sync.Mutex
}

func (c *conn) write(msg outgoingMessage) {
	msg.Timestamp = time.Now().Unix()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := c.ws.WriteJSON(msg); err != nil {
		log.Printf("[websocket] write %s failed: %v", msg.Type, err)
	}
}

func (c *conn) ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout))
}

// ErrorMessage is the data of an error frame. Kind is set for classified
// failures so a client can tell a rejected session from other errors.
type ErrorMessage struct {
	Message string        `json:"message"`
	Kind    apperror.Kind `json:"kind,omitempty"`
}

func (c *conn) sendError(sessionID, message string) {
	c.write(outgoingMessage{
		Type:      "error",
		SessionID: sessionID,
		Data:      ErrorMessage{Message: message},
	})
}

func (c *conn) sendAppError(sessionID string, err error) {
	kind, _ := apperror.KindOf(err)
	c.write(outgoingMessage{
		Type:      "error",
		SessionID: sessionID,
		Data:      ErrorMessage{Message: apperror.MessageOf(err), Kind: kind},
	})
}

// handleWebSocket 处理WebSocket连接
func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	wsConn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[websocket] upgrade failed: %v", err)
		return
	}
	defer wsConn.Close()

	c := &conn{ws: wsConn}
	effect := reveal.NewEffect(h.opts)
	defer effect.Stop()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	wsConn.SetReadDeadline(time.Now().Add(readTimeout))
	wsConn.SetPongHandler(func(string) error {
		wsConn.SetReadDeadline(time.Now().Add(readTimeout))
		return nil
	})

	go h.pingLoop(ctx, c)

	c.write(outgoingMessage{Type: "connected"})
	log.Printf("[websocket] new connection from %s", r.RemoteAddr)

	for {
		var msg inboundMessage
		if err := wsConn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[websocket] read error: %v", err)
			}
			return
		}
		wsConn.SetReadDeadline(time.Now().Add(readTimeout))

		switch msg.Type {
		case "chat":
			h.handleChat(ctx, c, effect, &msg)
		default:
			c.sendError(msg.SessionID, "unsupported message type: "+msg.Type)
		}
	}
}

// handleChat relays one message and reveals the reply. A new message cancels
// a reveal that is still running for the previous one.
func (h *Handler) handleChat(ctx context.Context, c *conn, effect *reveal.Effect, msg *inboundMessage) {
	var payload chathandler.Request
	if err := json.Unmarshal(msg.Data, &payload); err != nil {
		c.sendError(msg.SessionID, "invalid chat payload")
		return
	}

	if err := chathandler.Authorize(h.sessions, msg.SessionID, payload.Email, payload.Message); err != nil {
		c.sendAppError(msg.SessionID, err)
		return
	}

	effect.Stop()

	completion, err := h.relay.Handle(ctx, payload.Email, payload.Message)
	if err != nil {
		log.Printf("[websocket] relay failed for %s: %v", payload.Email, err)
		c.sendAppError(msg.SessionID, err)
		return
	}

	sessionID := msg.SessionID
	text := completion.AIOut
	effect.Start(text, func(prefix string) {
		c.write(outgoingMessage{
			Type:      "delta",
			SessionID: sessionID,
			Data:      map[string]string{"content": prefix},
		})
		if prefix == text {
			c.write(outgoingMessage{
				Type:      "ai",
				SessionID: sessionID,
				Data:      ReplyMessage{Text: text, IsFinal: true, Payload: completion.Payload()},
			})
		}
	}, func() {
		c.write(outgoingMessage{Type: "step", SessionID: sessionID})
	})
}

// pingLoop 定期发送ping消息
func (h *Handler) pingLoop(ctx context.Context, c *conn) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.ping(); err != nil {
				return
			}
		}
	}
}
