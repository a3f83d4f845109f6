// Package hub owns the teamID -> session map. The hub itself is an actor so
// that concurrent connects for the same team cannot race two sessions into
// existence: exactly one authoritative session per team.
package hub

import (
	"context"

	"go.uber.org/zap"

	"github.com/MomentaryChen/shuttle-shout/internal/engine"
	"github.com/MomentaryChen/shuttle-shout/internal/session"
)

type HubMsg interface{ isHubMsg() }

// EnsureSession returns the team's session, creating it from State when the
// team has none yet.
type EnsureSession struct {
	TeamID int64
	State  engine.State // only used if creation happens
	Reply  chan *session.Session
}

// RemoveSession shuts down and forgets the team's session, if any. Sent when
// the team itself is deleted.
type RemoveSession struct {
	TeamID int64
}

type ShutdownHub struct{}

func (EnsureSession) isHubMsg() {}
func (RemoveSession) isHubMsg() {}
func (ShutdownHub) isHubMsg()   {}

type Hub struct {
	inbox    chan HubMsg
	sessions map[int64]*session.Session
	ctx      context.Context
	cancel   context.CancelFunc
	log      *zap.Logger
}

func NewHub(parent context.Context, log *zap.Logger) *Hub {
	ctx, cancel := context.WithCancel(parent)
	h := &Hub{
		inbox:    make(chan HubMsg, 64),
		sessions: make(map[int64]*session.Session),
		ctx:      ctx,
		cancel:   cancel,
		log:      log,
	}
	go h.loop()
	return h
}

func (h *Hub) Inbox() chan<- HubMsg { return h.inbox }

func (h *Hub) loop() {
	for {
		select {
		case <-h.ctx.Done():
			h.shutdown()
			return

		case m := <-h.inbox:
			switch msg := m.(type) {
			case EnsureSession:
				if sess := h.sessions[msg.TeamID]; sess != nil {
					msg.Reply <- sess
					break
				}
				sess := session.New(h.ctx, msg.TeamID, msg.State, h.log)
				h.sessions[msg.TeamID] = sess
				h.log.Info("calling session created", zap.Int64("team_id", msg.TeamID))
				msg.Reply <- sess

			case RemoveSession:
				if sess := h.sessions[msg.TeamID]; sess != nil {
					sess.Inbox() <- session.Shutdown{}
					delete(h.sessions, msg.TeamID)
				}

			case ShutdownHub:
				h.shutdown()
				return
			}
		}
	}
}

func (h *Hub) shutdown() {
	for id, sess := range h.sessions {
		sess.Inbox() <- session.Shutdown{}
		delete(h.sessions, id)
	}
	h.cancel()
}
