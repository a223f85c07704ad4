package history

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	chathandler "github.com/diagnobuddy/backend/internal/handler/chat"
	"github.com/diagnobuddy/backend/internal/middleware"
	"github.com/diagnobuddy/backend/internal/model/chat"
	chatservice "github.com/diagnobuddy/backend/internal/service/chat"
	"github.com/diagnobuddy/backend/internal/service/relay"
	"github.com/diagnobuddy/backend/pkg/apperror"
	"github.com/diagnobuddy/backend/pkg/utils"
)

// Store is the slice of the history service these routes use.
type Store interface {
	History(ctx context.Context, email string) []chat.HistoryEntry
	Delete(ctx context.Context, email string) error
}

// Mailer sends a transcript to the user.
type Mailer interface {
	SendChat(ctx context.Context, email string) (string, error)
}

// ListResponse is the body of GET /history/{email}.
type ListResponse struct {
	Email   string              `json:"email"`
	Entries []chat.HistoryEntry `json:"entries"`
}

// MessageResponse carries a human readable confirmation.
type MessageResponse struct {
	Message string `json:"message"`
}

// Handler exposes per-email chat history.
//
// The session token gates mailing the transcript to its own address and
// nothing else. Reading and deleting history take the operator token.
type Handler struct {
	store      Store
	mailer     Mailer
	sessions   chathandler.Sessions
	adminToken string
}

// New creates the history handler. mailer may be nil when SMTP is not set up.
// An empty adminToken disables the list and delete routes.
func New(store Store, mailer Mailer, sessions chathandler.Sessions, adminToken string) *Handler {
	return &Handler{
		store:      store,
		mailer:     mailer,
		sessions:   sessions,
		adminToken: adminToken,
	}
}

// RegisterRoutes 注册历史记录相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/history/{email}", func(r chi.Router) {
		r.Get("/", h.handleList)
		r.Delete("/", h.handleDelete)
		r.Post("/mail", h.handleMail)
	})
}

func emailParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	email := strings.TrimSpace(chi.URLParam(r, "email"))
	if email == "" {
		utils.RespondAPIError(w, apperror.Validation(relay.NoEmailMessage))
		return "", false
	}
	return email, true
}

// authorize resolves the email path parameter and checks the session token.
func (h *Handler) authorize(w http.ResponseWriter, r *http.Request) (string, bool) {
	email, ok := emailParam(w, r)
	if !ok {
		return "", false
	}
	if err := h.sessions.Validate(r.Header.Get(middleware.SessionHeader), email); err != nil {
		utils.RespondAPIError(w, err)
		return "", false
	}
	return email, true
}

// authorizeAdmin resolves the email path parameter and checks the operator token.
func (h *Handler) authorizeAdmin(w http.ResponseWriter, r *http.Request) (string, bool) {
	if h.adminToken == "" {
		utils.RespondError(w, http.StatusForbidden, "history administration is disabled")
		return "", false
	}
	given := r.Header.Get(middleware.AdminHeader)
	if subtle.ConstantTimeCompare([]byte(given), []byte(h.adminToken)) != 1 {
		utils.RespondError(w, http.StatusForbidden, "admin token required")
		return "", false
	}
	return emailParam(w, r)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	email, ok := h.authorizeAdmin(w, r)
	if !ok {
		return
	}
	utils.RespondJSON(w, http.StatusOK, ListResponse{
		Email:   email,
		Entries: h.store.History(r.Context(), email),
	})
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	email, ok := h.authorizeAdmin(w, r)
	if !ok {
		return
	}

	if err := h.store.Delete(r.Context(), email); err != nil {
		if errors.Is(err, chatservice.ErrNoHistory) {
			utils.RespondError(w, http.StatusNotFound, fmt.Sprintf("No chat history for %s", email))
			return
		}
		utils.RespondAPIError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleMail(w http.ResponseWriter, r *http.Request) {
	email, ok := h.authorize(w, r)
	if !ok {
		return
	}
	if h.mailer == nil {
		utils.RespondError(w, http.StatusServiceUnavailable, "mail delivery is not configured")
		return
	}

	confirmation, err := h.mailer.SendChat(r.Context(), email)
	if err != nil {
		utils.RespondAPIError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, MessageResponse{Message: confirmation})
}
