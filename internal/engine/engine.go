package engine

import (
	"errors"
	"time"
)

var ErrUnknownCourt = errors.New("unknown court")
var ErrUnknownPlayer = errors.New("player is not a team member")
var ErrCourtFull = errors.New("court already has four players")
var ErrAlreadySeated = errors.New("player already assigned to a court")
var ErrCourtActive = errors.New("court has a match in progress")
var ErrCourtNotActive = errors.New("court has no match in progress")
var ErrCourtNotPending = errors.New("court has no pending assignment")
var ErrCourtNotEmpty = errors.New("court already has an assignment")
var ErrNotOnCourt = errors.New("player is not on this court")
var ErrPositionTaken = errors.New("position already occupied")
var ErrQueueEmpty = errors.New("waiting queue is empty")
var ErrInsufficientPlayers = errors.New("INSUFFICIENT_PLAYERS")
var ErrUnsupportedCommand = errors.New("unsupported command")

type CourtState string

const (
	CourtEmpty   CourtState = "EMPTY"
	CourtPending CourtState = "PENDING"
	CourtActive  CourtState = "ACTIVE"
)

const slotsPerCourt = 4

// QueueEntry is one waiting player. Wait duration is always derived from
// EnqueuedAt on read, never stored.
type QueueEntry struct {
	UserID      int64
	DisplayName string
	EnqueuedAt  time.Time
}

// CourtSlot seats one player at position 1..4. EnqueuedAt carries the
// player's queue timestamp so a cancelled assignment can return them to the
// front of the queue without resetting their wait.
type CourtSlot struct {
	Position    int
	UserID      int64
	DisplayName string
	EnqueuedAt  time.Time
}

type Court struct {
	ID             int
	State          CourtState
	Slots          []CourtSlot
	MatchStartedAt time.Time // zero unless State == CourtActive
}

// State is the full calling-session state for one team. Roster maps every
// team member to a display name; it only changes between sessions.
type State struct {
	Queue  []QueueEntry
	Courts []Court
	Roster map[int64]string
}

type CommandType string

const (
	CmdAutoAssign        CommandType = "AutoAssign"
	CmdAssignPlayer      CommandType = "AssignPlayer"
	CmdRemovePlayer      CommandType = "RemovePlayer"
	CmdConfirmStartMatch CommandType = "ConfirmStartMatch"
	CmdCancelPending     CommandType = "CancelPending"
	CmdFinishMatch       CommandType = "FinishMatch"
	CmdClearQueue        CommandType = "ClearQueue"
	CmdStartNewGame      CommandType = "StartNewGame"
	CmdJoinQueue         CommandType = "JoinQueue"
	CmdLeaveQueue        CommandType = "LeaveQueue"
)

type Command struct {
	Type     CommandType
	CourtID  int
	UserID   int64
	Position int
	// Players overrides the pending slots on ConfirmStartMatch when non-empty.
	Players []CourtSlot
	Now     time.Time
}

type EventType string

const (
	EvtQueueUpdated   EventType = "QueueUpdated"
	EvtCourtUpdated   EventType = "CourtUpdated"
	EvtAutoAssigned   EventType = "AutoAssigned"
	EvtMatchConfirmed EventType = "MatchConfirmed"
	EvtMatchFinished  EventType = "MatchFinished"
)

type Event struct {
	Type    EventType
	CourtID int
}

// Apply validates cmd against s and returns the events plus the next state.
// On error the returned state is s unchanged: every command validates fully
// before mutating anything.
func Apply(s State, cmd Command) ([]Event, State, error) {
	switch cmd.Type {
	case CmdAutoAssign:
		return applyAutoAssign(s, cmd)
	case CmdAssignPlayer:
		return applyAssignPlayer(s, cmd)
	case CmdRemovePlayer:
		return applyRemovePlayer(s, cmd)
	case CmdConfirmStartMatch:
		return applyConfirm(s, cmd)
	case CmdCancelPending:
		return applyCancel(s, cmd)
	case CmdFinishMatch:
		return applyFinish(s, cmd)
	case CmdClearQueue:
		ns := s.clone()
		ns.Queue = nil
		return []Event{{Type: EvtQueueUpdated}}, ns, nil
	case CmdStartNewGame:
		return applyStartNewGame(s)
	case CmdJoinQueue:
		return applyJoinQueue(s, cmd)
	case CmdLeaveQueue:
		ns := s.clone()
		var removed bool
		ns.Queue, _, removed = removeQueued(ns.Queue, cmd.UserID)
		if !removed {
			return nil, s, nil
		}
		return []Event{{Type: EvtQueueUpdated}}, ns, nil
	default:
		return nil, s, ErrUnsupportedCommand
	}
}

func applyAutoAssign(s State, cmd Command) ([]Event, State, error) {
	ci, ok := courtIndex(s, cmd.CourtID)
	if !ok {
		return nil, s, ErrUnknownCourt
	}
	if s.Courts[ci].State != CourtEmpty {
		return nil, s, ErrCourtNotEmpty
	}
	if len(s.Queue) == 0 {
		return nil, s, ErrQueueEmpty
	}

	ns := s.clone()
	court := &ns.Courts[ci]
	for pos := 1; pos <= slotsPerCourt && len(ns.Queue) > 0; pos++ {
		var head QueueEntry
		head, ns.Queue = dequeueFront(ns.Queue)
		court.Slots = append(court.Slots, CourtSlot{
			Position:    pos,
			UserID:      head.UserID,
			DisplayName: head.DisplayName,
			EnqueuedAt:  head.EnqueuedAt,
		})
	}
	court.State = CourtPending

	events := []Event{
		{Type: EvtAutoAssigned, CourtID: court.ID},
		{Type: EvtCourtUpdated, CourtID: court.ID},
		{Type: EvtQueueUpdated},
	}
	return events, ns, nil
}

func applyAssignPlayer(s State, cmd Command) ([]Event, State, error) {
	ci, ok := courtIndex(s, cmd.CourtID)
	if !ok {
		return nil, s, ErrUnknownCourt
	}
	name, member := s.Roster[cmd.UserID]
	if !member {
		return nil, s, ErrUnknownPlayer
	}
	court := s.Courts[ci]
	if court.State == CourtActive {
		return nil, s, ErrCourtActive
	}
	if len(court.Slots) >= slotsPerCourt {
		return nil, s, ErrCourtFull
	}
	if seatedAnywhere(s, cmd.UserID) {
		return nil, s, ErrAlreadySeated
	}
	pos := cmd.Position
	if pos != 0 {
		if pos < 1 || pos > slotsPerCourt || positionTaken(court, pos) {
			return nil, s, ErrPositionTaken
		}
	} else {
		pos = lowestFreePosition(court)
	}

	ns := s.clone()
	var entry QueueEntry
	var fromQueue bool
	ns.Queue, entry, fromQueue = removeQueued(ns.Queue, cmd.UserID)
	slot := CourtSlot{Position: pos, UserID: cmd.UserID, DisplayName: name}
	if fromQueue {
		slot.EnqueuedAt = entry.EnqueuedAt
	}
	target := &ns.Courts[ci]
	target.Slots = append(target.Slots, slot)
	sortSlots(target.Slots)
	target.State = CourtPending

	events := []Event{{Type: EvtCourtUpdated, CourtID: target.ID}}
	if fromQueue {
		events = append(events, Event{Type: EvtQueueUpdated})
	}
	return events, ns, nil
}

func applyRemovePlayer(s State, cmd Command) ([]Event, State, error) {
	ci, ok := courtIndex(s, cmd.CourtID)
	if !ok {
		return nil, s, ErrUnknownCourt
	}
	switch s.Courts[ci].State {
	case CourtActive:
		return nil, s, ErrCourtActive
	case CourtEmpty:
		return nil, s, ErrNotOnCourt
	}
	si := slotIndex(s.Courts[ci], cmd.UserID)
	if si < 0 {
		return nil, s, ErrNotOnCourt
	}

	ns := s.clone()
	court := &ns.Courts[ci]
	slot := court.Slots[si]
	court.Slots = append(court.Slots[:si], court.Slots[si+1:]...)
	if len(court.Slots) == 0 {
		court.State = CourtEmpty
	}
	// Bumped players are not penalized: back to the front, keeping their
	// original enqueue time when they came from the queue.
	ns.Queue = pushFront(ns.Queue, slotEntry(slot, cmd.Now))

	events := []Event{
		{Type: EvtCourtUpdated, CourtID: court.ID},
		{Type: EvtQueueUpdated},
	}
	return events, ns, nil
}

func applyConfirm(s State, cmd Command) ([]Event, State, error) {
	ci, ok := courtIndex(s, cmd.CourtID)
	if !ok {
		return nil, s, ErrUnknownCourt
	}
	if s.Courts[ci].State != CourtPending {
		return nil, s, ErrCourtNotPending
	}

	ns := s.clone()
	court := &ns.Courts[ci]
	if len(cmd.Players) > 0 {
		slots, queue, err := reconcileConfirmedSlots(ns, ci, cmd)
		if err != nil {
			return nil, s, err
		}
		court.Slots = slots
		ns.Queue = queue
	}
	if len(court.Slots) != slotsPerCourt {
		return nil, s, ErrInsufficientPlayers
	}
	court.State = CourtActive
	court.MatchStartedAt = cmd.Now

	events := []Event{
		{Type: EvtMatchConfirmed, CourtID: court.ID},
		{Type: EvtCourtUpdated, CourtID: court.ID},
		{Type: EvtQueueUpdated},
	}
	return events, ns, nil
}

// reconcileConfirmedSlots replaces the pending slots with the final line-up
// from cmd.Players: newcomers leave the queue, dropped occupants return to
// the queue front.
func reconcileConfirmedSlots(ns State, ci int, cmd Command) ([]CourtSlot, []QueueEntry, error) {
	court := ns.Courts[ci]
	seen := make(map[int64]bool, len(cmd.Players))
	positions := make(map[int]bool, len(cmd.Players))
	slots := make([]CourtSlot, 0, len(cmd.Players))
	for _, p := range cmd.Players {
		name, member := ns.Roster[p.UserID]
		if !member {
			return nil, nil, ErrUnknownPlayer
		}
		if p.Position < 1 || p.Position > slotsPerCourt || positions[p.Position] {
			return nil, nil, ErrPositionTaken
		}
		if seen[p.UserID] || onOtherCourt(ns, p.UserID, court.ID) {
			return nil, nil, ErrAlreadySeated
		}
		seen[p.UserID] = true
		positions[p.Position] = true
		slots = append(slots, CourtSlot{Position: p.Position, UserID: p.UserID, DisplayName: name})
	}
	sortSlots(slots)

	queue := ns.Queue
	for i := range slots {
		var entry QueueEntry
		var fromQueue bool
		queue, entry, fromQueue = removeQueued(queue, slots[i].UserID)
		if fromQueue {
			slots[i].EnqueuedAt = entry.EnqueuedAt
		} else if prev := slotIndex(court, slots[i].UserID); prev >= 0 {
			slots[i].EnqueuedAt = court.Slots[prev].EnqueuedAt
		}
	}
	for i := len(court.Slots) - 1; i >= 0; i-- {
		if old := court.Slots[i]; !seen[old.UserID] {
			queue = pushFront(queue, slotEntry(old, cmd.Now))
		}
	}
	return slots, queue, nil
}

func applyCancel(s State, cmd Command) ([]Event, State, error) {
	ci, ok := courtIndex(s, cmd.CourtID)
	if !ok {
		return nil, s, ErrUnknownCourt
	}
	if s.Courts[ci].State != CourtPending {
		return nil, s, ErrCourtNotPending
	}

	ns := s.clone()
	court := &ns.Courts[ci]
	// Front-insert in reverse slot order so the original relative order is
	// preserved at the head of the queue.
	for i := len(court.Slots) - 1; i >= 0; i-- {
		ns.Queue = pushFront(ns.Queue, slotEntry(court.Slots[i], cmd.Now))
	}
	court.Slots = nil
	court.State = CourtEmpty

	events := []Event{
		{Type: EvtCourtUpdated, CourtID: court.ID},
		{Type: EvtQueueUpdated},
	}
	return events, ns, nil
}

func applyFinish(s State, cmd Command) ([]Event, State, error) {
	ci, ok := courtIndex(s, cmd.CourtID)
	if !ok {
		return nil, s, ErrUnknownCourt
	}
	if s.Courts[ci].State != CourtActive {
		return nil, s, ErrCourtNotActive
	}

	ns := s.clone()
	court := &ns.Courts[ci]
	// Finished players start a fresh wait at the tail, in position order.
	for _, slot := range court.Slots {
		ns.Queue = append(ns.Queue, QueueEntry{
			UserID:      slot.UserID,
			DisplayName: slot.DisplayName,
			EnqueuedAt:  cmd.Now,
		})
	}
	court.Slots = nil
	court.State = CourtEmpty
	court.MatchStartedAt = time.Time{}

	events := []Event{
		{Type: EvtMatchFinished, CourtID: court.ID},
		{Type: EvtCourtUpdated, CourtID: court.ID},
		{Type: EvtQueueUpdated},
	}
	return events, ns, nil
}

func applyStartNewGame(s State) ([]Event, State, error) {
	ns := s.clone()
	ns.Queue = nil
	events := []Event{{Type: EvtQueueUpdated}}
	for i := range ns.Courts {
		ns.Courts[i].Slots = nil
		ns.Courts[i].State = CourtEmpty
		ns.Courts[i].MatchStartedAt = time.Time{}
		events = append(events, Event{Type: EvtCourtUpdated, CourtID: ns.Courts[i].ID})
	}
	return events, ns, nil
}

func applyJoinQueue(s State, cmd Command) ([]Event, State, error) {
	name, member := s.Roster[cmd.UserID]
	if !member {
		return nil, s, ErrUnknownPlayer
	}
	// Already queued or seated: silent no-op.
	if queuedIndex(s.Queue, cmd.UserID) >= 0 || seatedAnywhere(s, cmd.UserID) {
		return nil, s, nil
	}
	ns := s.clone()
	ns.Queue = append(ns.Queue, QueueEntry{UserID: cmd.UserID, DisplayName: name, EnqueuedAt: cmd.Now})
	return []Event{{Type: EvtQueueUpdated}}, ns, nil
}

func slotEntry(slot CourtSlot, now time.Time) QueueEntry {
	at := slot.EnqueuedAt
	if at.IsZero() {
		at = now
	}
	return QueueEntry{UserID: slot.UserID, DisplayName: slot.DisplayName, EnqueuedAt: at}
}
