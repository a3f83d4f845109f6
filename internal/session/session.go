// Package session runs one calling-session actor per team. All mutations of
// a team's queue and courts flow through the actor's inbox, which gives the
// per-team single-writer guarantee; different teams run independently.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/MomentaryChen/shuttle-shout/internal/engine"
	"github.com/MomentaryChen/shuttle-shout/internal/protocol"
)

type Msg interface{ isSessionMsg() }

// FromClient carries a command plus the issuing connection, so rejections go
// back to the requester only.
type FromClient struct {
	ClientID string
	Cmd      engine.Command
}

func (FromClient) isSessionMsg() {}

// Restore asks for the ongoing-match payload after a game-state check.
type Restore struct{ ClientID string }

func (Restore) isSessionMsg() {}

type Join struct {
	ClientID string
	Outbox   chan []byte // where this connection receives server messages
}

func (Join) isSessionMsg() {}

type Leave struct{ ClientID string }

func (Leave) isSessionMsg() {}

type Shutdown struct{}

func (Shutdown) isSessionMsg() {}

type GetState struct {
	Reply chan View
}

func (GetState) isSessionMsg() {}

// View is a test-only reflection of the actor's internals.
type View struct {
	NumClients int
	State      engine.State
}

type client struct {
	out chan []byte
	// set while the connection has seen GAME_STATE_CHECK with ongoing
	// matches and has not yet chosen restore or start-new-game
	awaitingDecision bool
}

type Session struct {
	teamID  int64
	inbox   chan Msg
	state   engine.State
	clients map[string]*client
	ctx     context.Context
	cancel  context.CancelFunc
	log     *zap.Logger
	now     func() time.Time
}

func New(parent context.Context, teamID int64, initial engine.State, log *zap.Logger) *Session {
	ctx, cancel := context.WithCancel(parent)
	s := &Session{
		teamID:  teamID,
		inbox:   make(chan Msg, 64),
		state:   initial,
		clients: make(map[string]*client),
		ctx:     ctx,
		cancel:  cancel,
		log:     log.With(zap.Int64("team_id", teamID)),
		now:     time.Now,
	}
	go s.loop()
	return s
}

// Inbox exposes the actor mailbox to the ws layer and tests.
func (s *Session) Inbox() chan<- Msg { return s.inbox }

func (s *Session) TeamID() int64 { return s.teamID }

func (s *Session) loop() {
	for {
		select {
		case <-s.ctx.Done():
			s.shutdown()
			return

		case m := <-s.inbox:
			switch msg := m.(type) {
			case Join:
				s.handleJoin(msg)
			case Leave:
				// Close the outbox so the connection's writer pump exits;
				// the slow-drop and shutdown paths do the same.
				if c, ok := s.clients[msg.ClientID]; ok {
					close(c.out)
					delete(s.clients, msg.ClientID)
				}
			case FromClient:
				s.handleCommand(msg)
			case Restore:
				s.handleRestore(msg.ClientID)
			case GetState:
				msg.Reply <- View{NumClients: len(s.clients), State: s.state}
			case Shutdown:
				s.shutdown()
				return
			}
		}
	}
}

func (s *Session) handleJoin(msg Join) {
	c := &client{out: msg.Outbox}
	s.clients[msg.ClientID] = c

	s.sendTo(msg.ClientID, protocol.NewConnected(s.teamID))
	s.sendTo(msg.ClientID, protocol.NewQueueUpdate(s.teamID, s.state.Queue, s.now()))
	// Pending line-ups are visible right away; ongoing matches are only
	// restored on explicit request because discarding them is destructive.
	for _, court := range s.state.Courts {
		if court.State == engine.CourtPending {
			s.sendTo(msg.ClientID, protocol.NewCourtUpdate(s.teamID, court))
		}
	}
	ongoing := len(engine.OngoingCourts(s.state))
	s.sendTo(msg.ClientID, protocol.NewGameStateCheck(s.teamID, ongoing))
	if ongoing > 0 {
		c.awaitingDecision = true
	}
}

func (s *Session) handleCommand(msg FromClient) {
	cmd := msg.Cmd
	cmd.Now = s.now()

	events, next, err := engine.Apply(s.state, cmd)
	if err != nil {
		if informational(err) {
			s.sendTo(msg.ClientID, protocol.NewNotice(err.Error()))
		} else {
			s.sendTo(msg.ClientID, protocol.NewError(err.Error()))
		}
		return
	}
	s.state = next

	if cmd.Type == engine.CmdStartNewGame {
		for _, c := range s.clients {
			c.awaitingDecision = false
		}
	}

	for _, ev := range events {
		switch ev.Type {
		case engine.EvtQueueUpdated:
			s.broadcast(protocol.NewQueueUpdate(s.teamID, s.state.Queue, s.now()))
		case engine.EvtCourtUpdated:
			if court, ok := s.court(ev.CourtID); ok {
				s.broadcast(protocol.NewCourtUpdate(s.teamID, court))
			}
		case engine.EvtAutoAssigned:
			if court, ok := s.court(ev.CourtID); ok {
				s.broadcast(protocol.NewAutoAssignSuccess(s.teamID, court))
			}
		case engine.EvtMatchConfirmed:
			if court, ok := s.court(ev.CourtID); ok {
				s.broadcast(protocol.NewConfirmStartMatchSuccess(s.teamID, court))
			}
		case engine.EvtMatchFinished:
			s.broadcastExcept(msg.ClientID, protocol.NewMatchFinished(s.teamID, ev.CourtID))
		}
	}
}

func (s *Session) handleRestore(clientID string) {
	ongoing := engine.OngoingCourts(s.state)
	if len(ongoing) == 0 {
		s.sendTo(clientID, protocol.NewNotice("no ongoing matches to restore"))
		return
	}
	s.sendTo(clientID, protocol.NewRestoreOngoingMatches(s.teamID, ongoing))
	if c := s.clients[clientID]; c != nil {
		c.awaitingDecision = false
	}
}

func (s *Session) court(courtID int) (engine.Court, bool) {
	for _, c := range s.state.Courts {
		if c.ID == courtID {
			return c, true
		}
	}
	return engine.Court{}, false
}

// informational errors are benign no-ops (duplicate auto-assign, empty
// queue), reported as NOTICE rather than ERROR.
func informational(err error) bool {
	return errors.Is(err, engine.ErrCourtNotEmpty) || errors.Is(err, engine.ErrQueueEmpty)
}

func (s *Session) marshal(v any) ([]byte, bool) {
	payload, err := json.Marshal(v)
	if err != nil {
		s.log.Error("marshal server message failed", zap.Error(err))
		return nil, false
	}
	return payload, true
}

func (s *Session) sendTo(clientID string, v any) {
	c, ok := s.clients[clientID]
	if !ok {
		return
	}
	payload, ok := s.marshal(v)
	if !ok {
		return
	}
	s.deliver(clientID, c, payload)
}

func (s *Session) broadcast(v any) {
	payload, ok := s.marshal(v)
	if !ok {
		return
	}
	for id, c := range s.clients {
		s.deliver(id, c, payload)
	}
}

func (s *Session) broadcastExcept(clientID string, v any) {
	payload, ok := s.marshal(v)
	if !ok {
		return
	}
	for id, c := range s.clients {
		if id != clientID {
			s.deliver(id, c, payload)
		}
	}
}

func (s *Session) deliver(id string, c *client, payload []byte) {
	select {
	case c.out <- payload:
	default:
		// Slow or dead connection: drop it rather than block the team.
		s.log.Warn("dropping slow client", zap.String("client_id", id))
		close(c.out)
		delete(s.clients, id)
	}
}

func (s *Session) shutdown() {
	for id, c := range s.clients {
		close(c.out)
		delete(s.clients, id)
	}
	s.cancel()
}
