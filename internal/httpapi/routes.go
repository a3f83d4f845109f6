package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/MomentaryChen/shuttle-shout/internal/auth"
	"github.com/MomentaryChen/shuttle-shout/internal/hub"
	"github.com/MomentaryChen/shuttle-shout/internal/store"
	"github.com/MomentaryChen/shuttle-shout/internal/ws"
)

type API struct {
	store *store.Store
	auth  *auth.Service
	hub   *hub.Hub
	log   *zap.Logger
}

func New(st *store.Store, authSvc *auth.Service, h *hub.Hub, log *zap.Logger) *API {
	return &API{store: st, auth: authSvc, hub: h, log: log}
}

func (a *API) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(a.logRequests)

	// Public routes
	r.Get("/healthz", a.handleHealthz)
	r.Post("/auth/register", a.handleRegister)
	r.Post("/auth/login", a.handleLogin)
	r.Get("/ws", ws.Handler(a.hub, a.store, a.auth, a.log))

	// Authenticated routes
	r.Get("/teams", a.requireAuth(a.handleListTeams))
	r.Post("/teams", a.requireAuth(a.handleCreateTeam))
	r.Get("/teams/{teamID}", a.requireAuth(a.handleGetTeam))
	r.Put("/teams/{teamID}", a.requireAuth(a.handleUpdateTeam))
	r.Delete("/teams/{teamID}", a.requireAuth(a.handleDeleteTeam))
	r.Get("/teams/{teamID}/members", a.requireAuth(a.handleListMembers))
	r.Post("/teams/{teamID}/members", a.requireAuth(a.handleAddMember))
	r.Get("/teams/{teamID}/courts", a.requireAuth(a.handleListCourts))

	// Quick calling (synchronous variant)
	r.Get("/teams/{teamID}/queue", a.requireAuth(a.handleQueueList))
	r.Post("/teams/{teamID}/queue", a.requireAuth(a.handleQueueJoin))
	r.Post("/courts/{courtID}/call", a.requireAuth(a.handleCourtCall))
	r.Post("/courts/{courtID}/finish", a.requireAuth(a.handleCourtFinish))
	r.Post("/queue/{ticketID}/cancel", a.requireAuth(a.handleTicketCancel))

	return r
}
