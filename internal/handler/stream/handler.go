package stream

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	chathandler "github.com/diagnobuddy/backend/internal/handler/chat"
	"github.com/diagnobuddy/backend/internal/middleware"
	"github.com/diagnobuddy/backend/pkg/apperror"
	"github.com/diagnobuddy/backend/pkg/reveal"
	"github.com/diagnobuddy/backend/pkg/utils"
)

// Handler relays a message and reveals the reply over Server-Sent Events.
type Handler struct {
	relay    chathandler.Relay
	sessions chathandler.Sessions
	opts     reveal.Options
}

// New creates a new stream handler
func New(relay chathandler.Relay, sessions chathandler.Sessions, opts reveal.Options) *Handler {
	return &Handler{
		relay:    relay,
		sessions: sessions,
		opts:     opts,
	}
}

// Event is the data of one SSE frame.
type Event struct {
	SessionID string          `json:"sessionId,omitempty"`
	Content   string          `json:"content,omitempty"`
	Finished  bool            `json:"finished,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	Error     string          `json:"error,omitempty"`
}

// RegisterRoutes mounts the stream endpoint.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/chat/stream", h.handleStream)
}

// handleStream reads email, message and sessionId from the query string, since
// EventSource cannot set request headers. The header is honoured as well.
func (h *Handler) handleStream(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	email := query.Get("email")
	message := query.Get("message")
	token := r.Header.Get(middleware.SessionHeader)
	if token == "" {
		token = query.Get("sessionId")
	}

	if err := chathandler.Authorize(h.sessions, token, email, message); err != nil {
		utils.RespondAPIError(w, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	utils.SetupSSEHeaders(w)
	ctx := r.Context()

	if err := utils.SendSSEEvent(w, flusher, "start", Event{SessionID: token}); err != nil {
		return
	}

	completion, err := h.relay.Handle(ctx, email, message)
	if err != nil {
		log.Printf("[stream] relay failed for %s: %v", email, err)
		utils.SendSSEEvent(w, flusher, "error", Event{SessionID: token, Error: apperror.MessageOf(err)})
		return
	}

	for frame := range reveal.Stream(ctx, completion.AIOut, h.opts) {
		if err := utils.SendSSEEvent(w, flusher, "delta", Event{SessionID: token, Content: frame.Prefix}); err != nil {
			log.Printf("[stream] client went away for %s: %v", email, err)
			return
		}
		if frame.Step {
			utils.SendSSEEvent(w, flusher, "step", Event{SessionID: token})
		}
	}

	if ctx.Err() != nil {
		log.Printf("[stream] reveal cancelled for %s", email)
		return
	}

	utils.SendSSEEvent(w, flusher, "end", Event{
		SessionID: token,
		Finished:  true,
		Data:      completion.Payload(),
	})
	log.Printf("[stream] completed response for %s, length=%d", email, len(completion.AIOut))
}
