package engine

import (
	"errors"
	"testing"
	"time"
)

var t0 = time.Date(2025, 6, 1, 19, 0, 0, 0, time.UTC)

func testRoster(n int) []Player {
	names := []string{"Amy", "Ben", "Cleo", "Dan", "Elle", "Finn", "Gus", "Hana"}
	roster := make([]Player, 0, n)
	for i := 0; i < n; i++ {
		roster = append(roster, Player{UserID: int64(i + 1), DisplayName: names[i%len(names)]})
	}
	return roster
}

func queueIDs(q []QueueEntry) []int64 {
	ids := make([]int64, 0, len(q))
	for _, e := range q {
		ids = append(ids, e.UserID)
	}
	return ids
}

func sameIDs(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func mustApply(t *testing.T, s State, cmd Command) State {
	t.Helper()
	_, next, err := Apply(s, cmd)
	if err != nil {
		t.Fatalf("unexpected error applying %s: %v", cmd.Type, err)
	}
	return next
}

func TestAutoAssign_FillsFourFromQueueFront(t *testing.T) {
	s := NewState(2, testRoster(5), t0)

	events, next, err := Apply(s, Command{Type: CmdAutoAssign, CourtID: 1, Now: t0})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	court := next.Courts[0]
	if court.State != CourtPending {
		t.Fatalf("want PENDING, got %s", court.State)
	}
	if len(court.Slots) != 4 {
		t.Fatalf("want 4 slots, got %d", len(court.Slots))
	}
	for i, slot := range court.Slots {
		if slot.Position != i+1 || slot.UserID != int64(i+1) {
			t.Fatalf("slot %d: got position=%d user=%d", i, slot.Position, slot.UserID)
		}
	}
	if !sameIDs(queueIDs(next.Queue), []int64{5}) {
		t.Fatalf("queue after auto-assign: got %v, want [5]", queueIDs(next.Queue))
	}
	want := map[EventType]bool{EvtAutoAssigned: true, EvtCourtUpdated: true, EvtQueueUpdated: true}
	for _, ev := range events {
		delete(want, ev.Type)
	}
	if len(want) != 0 {
		t.Fatalf("missing events: %v", want)
	}
}

func TestAutoAssign_ShortQueueAssignsFewer(t *testing.T) {
	s := NewState(1, testRoster(2), t0)

	_, next, err := Apply(s, Command{Type: CmdAutoAssign, CourtID: 1, Now: t0})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if got := len(next.Courts[0].Slots); got != 2 {
		t.Fatalf("want 2 slots, got %d", got)
	}
	if next.Courts[0].State != CourtPending {
		t.Fatalf("want PENDING, got %s", next.Courts[0].State)
	}
	if len(next.Queue) != 0 {
		t.Fatalf("queue should be drained, got %v", queueIDs(next.Queue))
	}
}

func TestAutoAssign_SecondCallIsRejected(t *testing.T) {
	s := NewState(1, testRoster(6), t0)
	s = mustApply(t, s, Command{Type: CmdAutoAssign, CourtID: 1, Now: t0})

	_, next, err := Apply(s, Command{Type: CmdAutoAssign, CourtID: 1, Now: t0})
	if !errors.Is(err, ErrCourtNotEmpty) {
		t.Fatalf("want ErrCourtNotEmpty, got %v", err)
	}
	if !sameIDs(queueIDs(next.Queue), queueIDs(s.Queue)) {
		t.Fatalf("rejected command must not mutate state")
	}
}

func TestAutoAssign_EmptyQueueIsInformational(t *testing.T) {
	s := NewState(1, nil, t0)
	_, _, err := Apply(s, Command{Type: CmdAutoAssign, CourtID: 1, Now: t0})
	if !errors.Is(err, ErrQueueEmpty) {
		t.Fatalf("want ErrQueueEmpty, got %v", err)
	}
}

func TestCancelPending_RestoresOriginalQueueOrder(t *testing.T) {
	// queue [1,2,3,4,5]; auto-assign takes [1,2,3,4]; cancel puts them back
	// at the front in the original relative order.
	s := NewState(1, testRoster(5), t0)
	s = mustApply(t, s, Command{Type: CmdAutoAssign, CourtID: 1, Now: t0})

	next := mustApply(t, s, Command{Type: CmdCancelPending, CourtID: 1, Now: t0.Add(time.Minute)})
	if !sameIDs(queueIDs(next.Queue), []int64{1, 2, 3, 4, 5}) {
		t.Fatalf("queue after cancel: got %v, want [1 2 3 4 5]", queueIDs(next.Queue))
	}
	if next.Courts[0].State != CourtEmpty || len(next.Courts[0].Slots) != 0 {
		t.Fatalf("court must be empty after cancel")
	}
	// Wait time is preserved across the round trip.
	if !next.Queue[0].EnqueuedAt.Equal(t0) {
		t.Fatalf("cancel must keep the original enqueue time, got %v", next.Queue[0].EnqueuedAt)
	}
}

func TestFinishMatch_ReturnsPlayersToTail(t *testing.T) {
	s := NewState(1, testRoster(6), t0)
	s = mustApply(t, s, Command{Type: CmdAutoAssign, CourtID: 1, Now: t0})
	s = mustApply(t, s, Command{Type: CmdConfirmStartMatch, CourtID: 1, Now: t0})

	next := mustApply(t, s, Command{Type: CmdFinishMatch, CourtID: 1, Now: t0.Add(20 * time.Minute)})
	if !sameIDs(queueIDs(next.Queue), []int64{5, 6, 1, 2, 3, 4}) {
		t.Fatalf("queue after finish: got %v, want [5 6 1 2 3 4]", queueIDs(next.Queue))
	}
	court := next.Courts[0]
	if court.State != CourtEmpty || len(court.Slots) != 0 || !court.MatchStartedAt.IsZero() {
		t.Fatalf("court must be reset after finish: %+v", court)
	}
}

func TestConfirm_RequiresFourPlayers(t *testing.T) {
	s := NewState(1, testRoster(3), t0)
	s = mustApply(t, s, Command{Type: CmdAutoAssign, CourtID: 1, Now: t0})

	_, next, err := Apply(s, Command{Type: CmdConfirmStartMatch, CourtID: 1, Now: t0})
	if !errors.Is(err, ErrInsufficientPlayers) {
		t.Fatalf("want ErrInsufficientPlayers, got %v", err)
	}
	if next.Courts[0].State != CourtPending {
		t.Fatalf("court must stay PENDING after a rejected confirm, got %s", next.Courts[0].State)
	}
}

func TestConfirm_SetsMatchStartedAt(t *testing.T) {
	s := NewState(1, testRoster(4), t0)
	s = mustApply(t, s, Command{Type: CmdAutoAssign, CourtID: 1, Now: t0})

	startAt := t0.Add(5 * time.Minute)
	next := mustApply(t, s, Command{Type: CmdConfirmStartMatch, CourtID: 1, Now: startAt})
	court := next.Courts[0]
	if court.State != CourtActive {
		t.Fatalf("want ACTIVE, got %s", court.State)
	}
	if !court.MatchStartedAt.Equal(startAt) {
		t.Fatalf("matchStartedAt: got %v, want %v", court.MatchStartedAt, startAt)
	}
}

func TestConfirm_PlayerOverrideSwapsLineup(t *testing.T) {
	s := NewState(1, testRoster(5), t0)
	s = mustApply(t, s, Command{Type: CmdAutoAssign, CourtID: 1, Now: t0})

	// Swap player 4 out for player 5 in the final line-up.
	override := []CourtSlot{
		{UserID: 1, Position: 1},
		{UserID: 2, Position: 2},
		{UserID: 3, Position: 3},
		{UserID: 5, Position: 4},
	}
	next := mustApply(t, s, Command{Type: CmdConfirmStartMatch, CourtID: 1, Players: override, Now: t0})
	court := next.Courts[0]
	if court.Slots[3].UserID != 5 {
		t.Fatalf("position 4: got user %d, want 5", court.Slots[3].UserID)
	}
	// The dropped player returns to the queue front.
	if !sameIDs(queueIDs(next.Queue), []int64{4}) {
		t.Fatalf("queue after override: got %v, want [4]", queueIDs(next.Queue))
	}
}

func TestManualAssign(t *testing.T) {
	cases := []struct {
		name    string
		prep    func(t *testing.T, s State) State
		cmd     Command
		wantErr error
	}{
		{
			name:    "legal assign from queue",
			prep:    func(_ *testing.T, s State) State { return s },
			cmd:     Command{Type: CmdAssignPlayer, CourtID: 1, UserID: 3},
			wantErr: nil,
		},
		{
			name: "rejected when court is full",
			prep: func(t *testing.T, s State) State {
				return mustApply(t, s, Command{Type: CmdAutoAssign, CourtID: 1, Now: t0})
			},
			cmd:     Command{Type: CmdAssignPlayer, CourtID: 1, UserID: 5},
			wantErr: ErrCourtFull,
		},
		{
			name: "rejected when player already seated elsewhere",
			prep: func(t *testing.T, s State) State {
				return mustApply(t, s, Command{Type: CmdAssignPlayer, CourtID: 2, UserID: 3, Now: t0})
			},
			cmd:     Command{Type: CmdAssignPlayer, CourtID: 1, UserID: 3},
			wantErr: ErrAlreadySeated,
		},
		{
			name: "rejected on an active court",
			prep: func(t *testing.T, s State) State {
				s = mustApply(t, s, Command{Type: CmdAutoAssign, CourtID: 1, Now: t0})
				return mustApply(t, s, Command{Type: CmdConfirmStartMatch, CourtID: 1, Now: t0})
			},
			cmd:     Command{Type: CmdAssignPlayer, CourtID: 1, UserID: 5},
			wantErr: ErrCourtActive,
		},
		{
			name:    "rejected for non-member",
			prep:    func(_ *testing.T, s State) State { return s },
			cmd:     Command{Type: CmdAssignPlayer, CourtID: 1, UserID: 99},
			wantErr: ErrUnknownPlayer,
		},
		{
			name:    "rejected for unknown court",
			prep:    func(_ *testing.T, s State) State { return s },
			cmd:     Command{Type: CmdAssignPlayer, CourtID: 9, UserID: 3},
			wantErr: ErrUnknownCourt,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := tc.prep(t, NewState(2, testRoster(5), t0))
			tc.cmd.Now = t0
			_, _, err := Apply(s, tc.cmd)
			if tc.wantErr == nil && err != nil {
				t.Fatalf("unexpected err: %v", err)
			}
			if tc.wantErr != nil && !errors.Is(err, tc.wantErr) {
				t.Fatalf("want %v, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestManualAssign_PicksLowestFreePosition(t *testing.T) {
	s := NewState(1, testRoster(4), t0)
	s = mustApply(t, s, Command{Type: CmdAssignPlayer, CourtID: 1, UserID: 1, Position: 2, Now: t0})
	s = mustApply(t, s, Command{Type: CmdAssignPlayer, CourtID: 1, UserID: 2, Now: t0})

	court := s.Courts[0]
	if court.Slots[0].Position != 1 || court.Slots[0].UserID != 2 {
		t.Fatalf("second assign should land on position 1, got %+v", court.Slots)
	}
}

func TestSingleLocationInvariant(t *testing.T) {
	s := NewState(1, testRoster(5), t0)
	s = mustApply(t, s, Command{Type: CmdAssignPlayer, CourtID: 1, UserID: 2, Now: t0})

	if queuedIndex(s.Queue, 2) >= 0 {
		t.Fatalf("assigned player must leave the queue")
	}
	if !seatedAnywhere(s, 2) {
		t.Fatalf("assigned player must be seated")
	}

	// Fill and run the match; afterwards the player is queued, not seated.
	for _, id := range []int64{1, 3, 4} {
		s = mustApply(t, s, Command{Type: CmdAssignPlayer, CourtID: 1, UserID: id, Now: t0})
	}
	s = mustApply(t, s, Command{Type: CmdConfirmStartMatch, CourtID: 1, Now: t0})
	s = mustApply(t, s, Command{Type: CmdFinishMatch, CourtID: 1, Now: t0.Add(time.Hour)})

	if queuedIndex(s.Queue, 2) < 0 {
		t.Fatalf("finished player must be back in the queue")
	}
	if seatedAnywhere(s, 2) {
		t.Fatalf("finished player must not stay seated")
	}
}

func TestRemovePlayer_RequeuesAtFront(t *testing.T) {
	s := NewState(1, testRoster(5), t0)
	s = mustApply(t, s, Command{Type: CmdAutoAssign, CourtID: 1, Now: t0})

	next := mustApply(t, s, Command{Type: CmdRemovePlayer, CourtID: 1, UserID: 3, Now: t0.Add(time.Minute)})
	if !sameIDs(queueIDs(next.Queue), []int64{3, 5}) {
		t.Fatalf("queue after remove: got %v, want [3 5]", queueIDs(next.Queue))
	}
	if len(next.Courts[0].Slots) != 3 || next.Courts[0].State != CourtPending {
		t.Fatalf("court should stay PENDING with 3 slots, got %+v", next.Courts[0])
	}
}

func TestRemovePlayer_LastSlotEmptiesCourt(t *testing.T) {
	s := NewState(1, testRoster(2), t0)
	s = mustApply(t, s, Command{Type: CmdAssignPlayer, CourtID: 1, UserID: 1, Now: t0})

	next := mustApply(t, s, Command{Type: CmdRemovePlayer, CourtID: 1, UserID: 1, Now: t0})
	if next.Courts[0].State != CourtEmpty {
		t.Fatalf("court must revert to EMPTY, got %s", next.Courts[0].State)
	}
}

func TestRemovePlayer_ActiveCourtIsRejected(t *testing.T) {
	s := NewState(1, testRoster(4), t0)
	s = mustApply(t, s, Command{Type: CmdAutoAssign, CourtID: 1, Now: t0})
	s = mustApply(t, s, Command{Type: CmdConfirmStartMatch, CourtID: 1, Now: t0})

	_, _, err := Apply(s, Command{Type: CmdRemovePlayer, CourtID: 1, UserID: 1, Now: t0})
	if !errors.Is(err, ErrCourtActive) {
		t.Fatalf("want ErrCourtActive, got %v", err)
	}
}

func TestClearQueue_DoesNotTouchCourts(t *testing.T) {
	s := NewState(1, testRoster(6), t0)
	s = mustApply(t, s, Command{Type: CmdAutoAssign, CourtID: 1, Now: t0})

	next := mustApply(t, s, Command{Type: CmdClearQueue, Now: t0})
	if len(next.Queue) != 0 {
		t.Fatalf("queue must be empty")
	}
	if len(next.Courts[0].Slots) != 4 {
		t.Fatalf("clearing the queue must leave courts alone")
	}
}

func TestStartNewGame_DiscardsEverything(t *testing.T) {
	s := NewState(2, testRoster(6), t0)
	s = mustApply(t, s, Command{Type: CmdAutoAssign, CourtID: 1, Now: t0})
	s = mustApply(t, s, Command{Type: CmdConfirmStartMatch, CourtID: 1, Now: t0})

	next := mustApply(t, s, Command{Type: CmdStartNewGame, Now: t0})
	if len(next.Queue) != 0 {
		t.Fatalf("queue must be cleared")
	}
	for _, c := range next.Courts {
		if c.State != CourtEmpty || len(c.Slots) != 0 || !c.MatchStartedAt.IsZero() {
			t.Fatalf("court %d not reset: %+v", c.ID, c)
		}
	}
}

func TestJoinQueue(t *testing.T) {
	s := NewState(1, testRoster(3), t0)
	s = mustApply(t, s, Command{Type: CmdClearQueue, Now: t0})

	s = mustApply(t, s, Command{Type: CmdJoinQueue, UserID: 2, Now: t0})
	if !sameIDs(queueIDs(s.Queue), []int64{2}) {
		t.Fatalf("queue after join: got %v", queueIDs(s.Queue))
	}

	// Joining again is a silent no-op.
	events, next, err := Apply(s, Command{Type: CmdJoinQueue, UserID: 2, Now: t0})
	if err != nil || len(events) != 0 || len(next.Queue) != 1 {
		t.Fatalf("duplicate join must be a no-op: events=%v err=%v queue=%v", events, err, queueIDs(next.Queue))
	}

	_, _, err = Apply(s, Command{Type: CmdJoinQueue, UserID: 42, Now: t0})
	if !errors.Is(err, ErrUnknownPlayer) {
		t.Fatalf("want ErrUnknownPlayer, got %v", err)
	}
}

func TestFinishMatch_RequiresActive(t *testing.T) {
	s := NewState(1, testRoster(4), t0)
	_, _, err := Apply(s, Command{Type: CmdFinishMatch, CourtID: 1, Now: t0})
	if !errors.Is(err, ErrCourtNotActive) {
		t.Fatalf("want ErrCourtNotActive, got %v", err)
	}
}

func TestCapacityInvariant_NeverMoreThanFour(t *testing.T) {
	s := NewState(1, testRoster(8), t0)
	s = mustApply(t, s, Command{Type: CmdAutoAssign, CourtID: 1, Now: t0})

	_, _, err := Apply(s, Command{Type: CmdAssignPlayer, CourtID: 1, UserID: 5, Now: t0})
	if !errors.Is(err, ErrCourtFull) {
		t.Fatalf("want ErrCourtFull, got %v", err)
	}
	if len(s.Courts[0].Slots) != 4 {
		t.Fatalf("capacity invariant broken: %d slots", len(s.Courts[0].Slots))
	}
}
