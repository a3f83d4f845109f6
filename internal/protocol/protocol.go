// Package protocol defines the wire schema of the team-calling channel.
// Field names follow the existing client contract (userId, courtId,
// assignments, isPending, ...).
package protocol

import (
	"time"

	"github.com/MomentaryChen/shuttle-shout/internal/engine"
)

// Client -> server message types.
const (
	TypeAutoAssign    = "AUTO_ASSIGN"
	TypeAssignPlayer  = "ASSIGN_PLAYER"
	TypeRemovePlayer  = "REMOVE_PLAYER"
	TypeConfirmStart  = "CONFIRM_START_MATCH"
	TypeCancelPending = "CANCEL_PENDING_ASSIGNMENT"
	TypeFinishMatch   = "FINISH_MATCH"
	TypeClearQueue    = "CLEAR_QUEUE"
	TypeStartNewGame  = "START_NEW_GAME"
	TypeRestoreState  = "RESTORE_STATE"
	TypeJoinQueue     = "JOIN_QUEUE"
	TypeLeaveQueue    = "LEAVE_QUEUE"
)

// Server -> client message types.
const (
	TypeConnected      = "CONNECTED"
	TypeQueueUpdate    = "QUEUE_UPDATE"
	TypeCourtUpdate    = "COURT_UPDATE"
	TypeAutoAssignOK   = "AUTO_ASSIGN_SUCCESS"
	TypeConfirmStartOK = "CONFIRM_START_MATCH_SUCCESS"
	TypeGameStateCheck = "GAME_STATE_CHECK"
	TypeRestoreMatches = "RESTORE_ONGOING_MATCHES"
	TypeMatchFinished  = "MATCH_FINISHED"
	TypeError          = "ERROR"
	TypeNotice         = "NOTICE"
)

// ClientMessage is the single inbound envelope; unused fields stay zero.
type ClientMessage struct {
	Type     string       `json:"type"`
	TeamID   int64        `json:"teamId,omitempty"`
	CourtID  int          `json:"courtId,omitempty"`
	PlayerID int64        `json:"playerId,omitempty"`
	Position int          `json:"position,omitempty"`
	Players  []Assignment `json:"players,omitempty"`
}

// Assignment is one seated player in a court payload.
type Assignment struct {
	UserID   int64  `json:"userId"`
	Position int    `json:"position"`
	UserName string `json:"userName,omitempty"`
}

// QueueEntry is one waiting player in a QUEUE_UPDATE. WaitSeconds is
// recomputed from EnqueuedAt at send time.
type QueueEntry struct {
	UserID      int64     `json:"userId"`
	UserName    string    `json:"userName"`
	EnqueuedAt  time.Time `json:"enqueuedAt"`
	WaitSeconds int64     `json:"waitSeconds"`
}

// CourtSnapshot is the full state of one court.
type CourtSnapshot struct {
	CourtID        int          `json:"courtId"`
	State          string       `json:"state"`
	Assignments    []Assignment `json:"assignments"`
	MatchStartedAt *time.Time   `json:"matchStartedAt,omitempty"`
}

type Connected struct {
	Type   string `json:"type"`
	TeamID int64  `json:"teamId"`
}

type QueueUpdate struct {
	Type   string       `json:"type"`
	TeamID int64        `json:"teamId"`
	Queue  []QueueEntry `json:"queue"`
}

type CourtUpdate struct {
	Type   string        `json:"type"`
	TeamID int64         `json:"teamId"`
	Court  CourtSnapshot `json:"court"`
}

type AutoAssignSuccess struct {
	Type        string       `json:"type"`
	TeamID      int64        `json:"teamId"`
	CourtID     int          `json:"courtId"`
	Assignments []Assignment `json:"assignments"`
	IsPending   bool         `json:"isPending"`
}

type ConfirmStartMatchSuccess struct {
	Type           string       `json:"type"`
	TeamID         int64        `json:"teamId"`
	CourtID        int          `json:"courtId"`
	Assignments    []Assignment `json:"assignments"`
	MatchStartedAt time.Time    `json:"matchStartedAt"`
}

type GameStateCheck struct {
	Type               string `json:"type"`
	TeamID             int64  `json:"teamId"`
	HasOngoingMatches  bool   `json:"hasOngoingMatches"`
	OngoingCourtsCount int    `json:"ongoingCourtsCount"`
}

type RestoreOngoingMatches struct {
	Type   string          `json:"type"`
	TeamID int64           `json:"teamId"`
	Courts []CourtSnapshot `json:"courts"`
}

type MatchFinished struct {
	Type    string `json:"type"`
	TeamID  int64  `json:"teamId"`
	CourtID int    `json:"courtId"`
}

type ErrorMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type Notice struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func NewConnected(teamID int64) Connected {
	return Connected{Type: TypeConnected, TeamID: teamID}
}

func NewQueueUpdate(teamID int64, queue []engine.QueueEntry, now time.Time) QueueUpdate {
	entries := make([]QueueEntry, 0, len(queue))
	for _, e := range queue {
		entries = append(entries, QueueEntry{
			UserID:      e.UserID,
			UserName:    e.DisplayName,
			EnqueuedAt:  e.EnqueuedAt,
			WaitSeconds: int64(now.Sub(e.EnqueuedAt).Seconds()),
		})
	}
	return QueueUpdate{Type: TypeQueueUpdate, TeamID: teamID, Queue: entries}
}

func NewCourtUpdate(teamID int64, court engine.Court) CourtUpdate {
	return CourtUpdate{Type: TypeCourtUpdate, TeamID: teamID, Court: SnapshotCourt(court)}
}

func NewAutoAssignSuccess(teamID int64, court engine.Court) AutoAssignSuccess {
	return AutoAssignSuccess{
		Type:        TypeAutoAssignOK,
		TeamID:      teamID,
		CourtID:     court.ID,
		Assignments: assignments(court),
		IsPending:   court.State == engine.CourtPending,
	}
}

func NewConfirmStartMatchSuccess(teamID int64, court engine.Court) ConfirmStartMatchSuccess {
	return ConfirmStartMatchSuccess{
		Type:           TypeConfirmStartOK,
		TeamID:         teamID,
		CourtID:        court.ID,
		Assignments:    assignments(court),
		MatchStartedAt: court.MatchStartedAt,
	}
}

func NewGameStateCheck(teamID int64, ongoing int) GameStateCheck {
	return GameStateCheck{
		Type:               TypeGameStateCheck,
		TeamID:             teamID,
		HasOngoingMatches:  ongoing > 0,
		OngoingCourtsCount: ongoing,
	}
}

func NewRestoreOngoingMatches(teamID int64, courts []engine.Court) RestoreOngoingMatches {
	snaps := make([]CourtSnapshot, 0, len(courts))
	for _, c := range courts {
		snaps = append(snaps, SnapshotCourt(c))
	}
	return RestoreOngoingMatches{Type: TypeRestoreMatches, TeamID: teamID, Courts: snaps}
}

func NewMatchFinished(teamID int64, courtID int) MatchFinished {
	return MatchFinished{Type: TypeMatchFinished, TeamID: teamID, CourtID: courtID}
}

func NewError(message string) ErrorMessage {
	return ErrorMessage{Type: TypeError, Message: message}
}

func NewNotice(message string) Notice {
	return Notice{Type: TypeNotice, Message: message}
}

// SnapshotCourt converts engine court state to its wire form.
func SnapshotCourt(c engine.Court) CourtSnapshot {
	snap := CourtSnapshot{
		CourtID:     c.ID,
		State:       string(c.State),
		Assignments: assignments(c),
	}
	if !c.MatchStartedAt.IsZero() {
		at := c.MatchStartedAt
		snap.MatchStartedAt = &at
	}
	return snap
}

func assignments(c engine.Court) []Assignment {
	out := make([]Assignment, 0, len(c.Slots))
	for _, slot := range c.Slots {
		out = append(out, Assignment{UserID: slot.UserID, Position: slot.Position, UserName: slot.DisplayName})
	}
	return out
}
