package chat

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/diagnobuddy/backend/internal/middleware"
	"github.com/diagnobuddy/backend/internal/model/chat"
	"github.com/diagnobuddy/backend/internal/service/relay"
	"github.com/diagnobuddy/backend/pkg/apperror"
	"github.com/diagnobuddy/backend/pkg/utils"
)

// Relay answers a user message.
type Relay interface {
	Handle(ctx context.Context, email, message string) (chat.Completion, error)
}

// Sessions issues and checks chat session tokens.
type Sessions interface {
	Issue(email string) (chat.SessionToken, error)
	Validate(token, email string) error
}

// Request is the body of both the session and chat endpoints.
type Request struct {
	Email   string `json:"email"`
	Message string `json:"message"`
}

// SessionResponse is returned when a token is issued.
type SessionResponse struct {
	SessionID string `json:"sessionId"`
	ExpiresAt int64  `json:"expiresAt"`
}

// Response wraps the completion payload for the chat endpoint.
type Response struct {
	SessionID string          `json:"sessionId"`
	Data      json.RawMessage `json:"data"`
}

// Handler 聊天服务的HTTP处理器
type Handler struct {
	relay    Relay
	sessions Sessions
}

// New 创建聊天处理器
func New(relay Relay, sessions Sessions) *Handler {
	return &Handler{
		relay:    relay,
		sessions: sessions,
	}
}

// RegisterRoutes 注册聊天相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/session", h.handleCreateSession)
	r.Post("/chat", h.handleChat)
}

// handleCreateSession issues a session token for the email in the body.
func (h *Handler) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var payload Request
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if strings.TrimSpace(payload.Email) == "" {
		utils.RespondAPIError(w, apperror.Validation(relay.NoEmailMessage))
		return
	}

	token, err := h.sessions.Issue(payload.Email)
	if err != nil {
		utils.RespondAPIError(w, err)
		return
	}

	utils.RespondJSON(w, http.StatusCreated, SessionResponse{
		SessionID: token.Token,
		ExpiresAt: token.ExpiresAtMillis(),
	})
}

// handleChat relays one message. The session token travels in X-Session-Id.
func (h *Handler) handleChat(w http.ResponseWriter, r *http.Request) {
	var payload Request
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	token := r.Header.Get(middleware.SessionHeader)
	if err := Authorize(h.sessions, token, payload.Email, payload.Message); err != nil {
		utils.RespondAPIError(w, err)
		return
	}

	completion, err := h.relay.Handle(r.Context(), payload.Email, payload.Message)
	if err != nil {
		log.Printf("[chat] relay failed for %s: %v", payload.Email, err)
		utils.RespondAPIError(w, err)
		return
	}

	w.Header().Set(middleware.SessionHeader, token)
	utils.RespondJSON(w, http.StatusOK, Response{
		SessionID: token,
		Data:      completion.Payload(),
	})
}

// Authorize validates the request fields first and then the session token,
// so a bad request is reported as such even without a token.
func Authorize(sessions Sessions, token, email, message string) error {
	if err := relay.ValidateInput(email, message); err != nil {
		return err
	}
	return sessions.Validate(token, email)
}
