package engine

import (
	"sort"
	"time"
)

// Player is a roster member as handed over from team metadata.
type Player struct {
	UserID      int64
	DisplayName string
}

// NewState builds a fresh session: courts 1..courtCount all empty, queue
// seeded with the roster in membership order.
func NewState(courtCount int, roster []Player, now time.Time) State {
	s := State{
		Courts: make([]Court, 0, courtCount),
		Queue:  make([]QueueEntry, 0, len(roster)),
		Roster: make(map[int64]string, len(roster)),
	}
	for i := 1; i <= courtCount; i++ {
		s.Courts = append(s.Courts, Court{ID: i, State: CourtEmpty})
	}
	for _, p := range roster {
		s.Roster[p.UserID] = p.DisplayName
		s.Queue = append(s.Queue, QueueEntry{UserID: p.UserID, DisplayName: p.DisplayName, EnqueuedAt: now})
	}
	return s
}

// OngoingCourts returns the courts with a running match, for the
// game-state check and restore payloads.
func OngoingCourts(s State) []Court {
	var out []Court
	for _, c := range s.Courts {
		if c.State == CourtActive {
			out = append(out, c)
		}
	}
	return out
}

func (s State) clone() State {
	ns := State{
		Queue:  make([]QueueEntry, len(s.Queue)),
		Courts: make([]Court, len(s.Courts)),
		Roster: s.Roster, // immutable for the session lifetime
	}
	copy(ns.Queue, s.Queue)
	for i, c := range s.Courts {
		nc := c
		nc.Slots = make([]CourtSlot, len(c.Slots))
		copy(nc.Slots, c.Slots)
		ns.Courts[i] = nc
	}
	return ns
}

func courtIndex(s State, courtID int) (int, bool) {
	for i := range s.Courts {
		if s.Courts[i].ID == courtID {
			return i, true
		}
	}
	return 0, false
}

func slotIndex(c Court, userID int64) int {
	for i := range c.Slots {
		if c.Slots[i].UserID == userID {
			return i
		}
	}
	return -1
}

func seatedAnywhere(s State, userID int64) bool {
	for _, c := range s.Courts {
		if slotIndex(c, userID) >= 0 {
			return true
		}
	}
	return false
}

func onOtherCourt(s State, userID int64, courtID int) bool {
	for _, c := range s.Courts {
		if c.ID != courtID && slotIndex(c, userID) >= 0 {
			return true
		}
	}
	return false
}

func positionTaken(c Court, pos int) bool {
	for _, slot := range c.Slots {
		if slot.Position == pos {
			return true
		}
	}
	return false
}

func lowestFreePosition(c Court) int {
	for pos := 1; pos <= slotsPerCourt; pos++ {
		if !positionTaken(c, pos) {
			return pos
		}
	}
	return 0
}

func sortSlots(slots []CourtSlot) {
	sort.Slice(slots, func(i, j int) bool { return slots[i].Position < slots[j].Position })
}
