package hub

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/MomentaryChen/shuttle-shout/internal/engine"
	"github.com/MomentaryChen/shuttle-shout/internal/session"
)

func recvSession(t *testing.T, ch <-chan *session.Session) *session.Session {
	t.Helper()
	select {
	case s := <-ch:
		return s
	case <-time.After(200 * time.Millisecond):
		t.Fatalf("timed out waiting for session reply")
		return nil // unreachable
	}
}

func ensure(t *testing.T, h *Hub, teamID int64) *session.Session {
	t.Helper()
	reply := make(chan *session.Session, 1)
	h.Inbox() <- EnsureSession{TeamID: teamID, State: engine.NewState(1, nil, time.Now()), Reply: reply}
	return recvSession(t, reply)
}

func TestHub_EnsureSessionIsIdempotent(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h := NewHub(ctx, zap.NewNop())

	first := ensure(t, h, 5)
	if first == nil || first.TeamID() != 5 {
		t.Fatalf("want a session for team 5, got %v", first)
	}

	// A second ensure for the same team returns the same actor.
	if second := ensure(t, h, 5); second != first {
		t.Fatalf("ensure must not create a second session for the same team")
	}

	// A different team gets its own.
	if third := ensure(t, h, 6); third == first {
		t.Fatalf("different teams must not share a session")
	}
}

func TestHub_RemoveSessionForgetsTheTeam(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h := NewHub(ctx, zap.NewNop())
	first := ensure(t, h, 5)

	// Watch the session die: its outboxes close on shutdown.
	out := make(chan []byte, 8)
	first.Inbox() <- session.Join{ClientID: "c1", Outbox: out}

	h.Inbox() <- RemoveSession{TeamID: 5}

	deadline := time.After(500 * time.Millisecond)
	for closed := false; !closed; {
		select {
		case _, ok := <-out:
			closed = !ok
		case <-deadline:
			t.Fatalf("removed session must shut down and close its outboxes")
		}
	}

	// Re-ensuring builds a fresh actor.
	if again := ensure(t, h, 5); again == first {
		t.Fatalf("re-ensure after remove must create a new session")
	}
}

func TestHub_RemoveUnknownTeamIsANoOp(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h := NewHub(ctx, zap.NewNop())
	h.Inbox() <- RemoveSession{TeamID: 99}

	// The hub still services requests afterwards.
	if sess := ensure(t, h, 1); sess == nil {
		t.Fatalf("hub stopped serving after removing an unknown team")
	}
}
