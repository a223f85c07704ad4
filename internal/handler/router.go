package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/diagnobuddy/backend/internal/handler/chat"
	"github.com/diagnobuddy/backend/internal/handler/history"
	"github.com/diagnobuddy/backend/internal/handler/persona"
	"github.com/diagnobuddy/backend/internal/handler/stream"
	"github.com/diagnobuddy/backend/internal/handler/ws"
	middlewarePkg "github.com/diagnobuddy/backend/internal/middleware"
	personaModel "github.com/diagnobuddy/backend/internal/model/persona"
	"github.com/diagnobuddy/backend/pkg/reveal"
	"github.com/diagnobuddy/backend/pkg/utils"
)

// Services bundles what the HTTP layer depends on. Mailer may be nil.
// HistoryAdminToken gates listing and deleting history; empty disables both.
type Services struct {
	Personas          personaModel.Store
	History           history.Store
	Relay             chat.Relay
	Sessions          chat.Sessions
	Mailer            history.Mailer
	Reveal            reveal.Options
	HistoryAdminToken string
}

// HealthResponse is the body of GET /api/health.
type HealthResponse struct {
	Status string `json:"status"`
	Time   string `json:"time"`
}

// NewRouter wires HTTP routes to core services.
func NewRouter(svcs Services) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	// Create handlers
	personaHandler := persona.New(svcs.Personas)
	chatHandler := chat.New(svcs.Relay, svcs.Sessions)
	streamHandler := stream.New(svcs.Relay, svcs.Sessions, svcs.Reveal)
	wsHandler := ws.New(svcs.Relay, svcs.Sessions, svcs.Reveal)
	historyHandler := history.New(svcs.History, svcs.Mailer, svcs.Sessions, svcs.HistoryAdminToken)

	r.Route("/api", func(api chi.Router) {
		api.Get("/health", handleHealth)

		personaHandler.RegisterRoutes(api)
		chatHandler.RegisterRoutes(api)
		streamHandler.RegisterRoutes(api)
		wsHandler.RegisterRoutes(api)
		historyHandler.RegisterRoutes(api)
	})

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, HealthResponse{
		Status: "ok",
		Time:   time.Now().UTC().Format(time.RFC3339),
	})
}
