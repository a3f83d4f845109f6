package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/MomentaryChen/shuttle-shout/internal/hub"
	"github.com/MomentaryChen/shuttle-shout/internal/store"
)

func idParam(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	return id, err == nil && id > 0
}

func (a *API) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
		Name     string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad json")
		return
	}
	if req.Username == "" || len(req.Password) < 6 {
		writeError(w, http.StatusBadRequest, "username required, password at least 6 characters")
		return
	}
	if req.Name == "" {
		req.Name = req.Username
	}
	hash, err := a.auth.HashPassword(req.Password)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to hash password")
		return
	}
	user := &store.User{Username: req.Username, PasswordHash: hash, Name: req.Name}
	if err := a.store.CreateUser(r.Context(), user); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			writeError(w, http.StatusConflict, "username already exists")
			return
		}
		a.log.Error("register failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to create user")
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad json")
		return
	}
	user, err := a.store.UserByUsername(r.Context(), req.Username)
	if err != nil || !a.auth.CheckPassword(user.PasswordHash, req.Password) {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	token, err := a.auth.IssueToken(user.ID, user.Username)
	if err != nil {
		a.log.Error("issuing token failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to issue token")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"token": token, "user": user})
}

func (a *API) handleListTeams(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r.Context())
	teams, err := a.store.TeamsByOwner(r.Context(), claims.UserID)
	if err != nil {
		a.log.Error("listing teams failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list teams")
		return
	}
	writeJSON(w, http.StatusOK, teams)
}

func (a *API) handleCreateTeam(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r.Context())
	var req struct {
		Name       string `json:"name"`
		CourtCount int    `json:"courtCount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad json")
		return
	}
	if req.Name == "" || req.CourtCount < 1 {
		writeError(w, http.StatusBadRequest, "name and a positive courtCount are required")
		return
	}
	team := &store.Team{Name: req.Name, OwnerID: claims.UserID, CourtCount: req.CourtCount}
	if err := a.store.CreateTeam(r.Context(), team); err != nil {
		a.log.Error("creating team failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to create team")
		return
	}
	writeJSON(w, http.StatusCreated, team)
}

// ownedTeam loads the team and enforces that the caller owns it.
func (a *API) ownedTeam(w http.ResponseWriter, r *http.Request) (*store.Team, bool) {
	teamID, ok := idParam(r, "teamID")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid team id")
		return nil, false
	}
	team, err := a.store.TeamByID(r.Context(), teamID)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "team not found")
		return nil, false
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load team")
		return nil, false
	}
	if claims := claimsFrom(r.Context()); claims == nil || claims.UserID != team.OwnerID {
		writeError(w, http.StatusForbidden, "not the team owner")
		return nil, false
	}
	return team, true
}

func (a *API) handleGetTeam(w http.ResponseWriter, r *http.Request) {
	team, ok := a.ownedTeam(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, team)
}

func (a *API) handleUpdateTeam(w http.ResponseWriter, r *http.Request) {
	team, ok := a.ownedTeam(w, r)
	if !ok {
		return
	}
	var req struct {
		Name       string `json:"name"`
		CourtCount int    `json:"courtCount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad json")
		return
	}
	if req.Name != "" {
		team.Name = req.Name
	}
	if req.CourtCount > 0 {
		team.CourtCount = req.CourtCount
	}
	if err := a.store.UpdateTeam(r.Context(), team); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to update team")
		return
	}
	writeJSON(w, http.StatusOK, team)
}

func (a *API) handleDeleteTeam(w http.ResponseWriter, r *http.Request) {
	team, ok := a.ownedTeam(w, r)
	if !ok {
		return
	}
	if err := a.store.DeleteTeam(r.Context(), team.ID); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to delete team")
		return
	}
	// A deleted team's calling session dies with it.
	a.hub.Inbox() <- hub.RemoveSession{TeamID: team.ID}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleListMembers(w http.ResponseWriter, r *http.Request) {
	team, ok := a.ownedTeam(w, r)
	if !ok {
		return
	}
	members, err := a.store.TeamMembers(r.Context(), team.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list members")
		return
	}
	writeJSON(w, http.StatusOK, members)
}

func (a *API) handleAddMember(w http.ResponseWriter, r *http.Request) {
	team, ok := a.ownedTeam(w, r)
	if !ok {
		return
	}
	var req struct {
		UserID  int64  `json:"userId"`
		SubTeam string `json:"subTeam"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID <= 0 {
		writeError(w, http.StatusBadRequest, "userId is required")
		return
	}
	if _, err := a.store.UserByID(r.Context(), req.UserID); err != nil {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}
	member := &store.TeamMember{TeamID: team.ID, UserID: req.UserID, SubTeam: req.SubTeam}
	if err := a.store.AddMember(r.Context(), member); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			writeError(w, http.StatusConflict, "already a member")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to add member")
		return
	}
	writeJSON(w, http.StatusCreated, member)
}

func (a *API) handleListCourts(w http.ResponseWriter, r *http.Request) {
	team, ok := a.ownedTeam(w, r)
	if !ok {
		return
	}
	courts, err := a.store.TeamCourts(r.Context(), team.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list courts")
		return
	}
	writeJSON(w, http.StatusOK, courts)
}

// Quick-calling variant endpoints: synchronous, the client refetches after
// each action.

func (a *API) handleQueueJoin(w http.ResponseWriter, r *http.Request) {
	team, ok := a.ownedTeam(w, r)
	if !ok {
		return
	}
	var req struct {
		PlayerID int64 `json:"playerId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.PlayerID <= 0 {
		writeError(w, http.StatusBadRequest, "playerId is required")
		return
	}
	ticket, err := a.store.EnqueueTicket(r.Context(), team.ID, req.PlayerID)
	if err != nil {
		if errors.Is(err, store.ErrAlreadyQueued) {
			writeError(w, http.StatusConflict, "player already has an open ticket")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to enqueue")
		return
	}
	writeJSON(w, http.StatusCreated, ticket)
}

func (a *API) handleQueueList(w http.ResponseWriter, r *http.Request) {
	team, ok := a.ownedTeam(w, r)
	if !ok {
		return
	}
	tickets, err := a.store.WaitingTickets(r.Context(), team.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list queue")
		return
	}
	writeJSON(w, http.StatusOK, tickets)
}

func (a *API) handleCourtCall(w http.ResponseWriter, r *http.Request) {
	courtID, ok := idParam(r, "courtID")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid court id")
		return
	}
	ticket, err := a.store.CallNext(r.Context(), courtID)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			writeError(w, http.StatusNotFound, "court not found")
		case errors.Is(err, store.ErrNoMatchingPlayer):
			writeError(w, http.StatusConflict, "no waiting player matches this court")
		default:
			writeError(w, http.StatusInternalServerError, "failed to call player")
		}
		return
	}
	writeJSON(w, http.StatusOK, ticket)
}

func (a *API) handleCourtFinish(w http.ResponseWriter, r *http.Request) {
	courtID, ok := idParam(r, "courtID")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid court id")
		return
	}
	served, err := a.store.FinishCourt(r.Context(), courtID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "court not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to finish court")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"served": served})
}

func (a *API) handleTicketCancel(w http.ResponseWriter, r *http.Request) {
	ticketID, ok := idParam(r, "ticketID")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid ticket id")
		return
	}
	if err := a.store.CancelTicket(r.Context(), ticketID); err != nil {
		if errors.Is(err, store.ErrTicketState) {
			writeError(w, http.StatusConflict, "ticket is not waiting")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to cancel ticket")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}
