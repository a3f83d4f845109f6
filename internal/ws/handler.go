package ws

import (
	"context"
	"encoding/json"
	"math/rand"
	"net/http"
	"strconv"
	"time"

	"github.com/coder/websocket"
	"go.uber.org/zap"

	"github.com/MomentaryChen/shuttle-shout/internal/auth"
	"github.com/MomentaryChen/shuttle-shout/internal/engine"
	"github.com/MomentaryChen/shuttle-shout/internal/hub"
	"github.com/MomentaryChen/shuttle-shout/internal/protocol"
	"github.com/MomentaryChen/shuttle-shout/internal/session"
	"github.com/MomentaryChen/shuttle-shout/internal/store"
)

const writeTimeout = 3 * time.Second

// pingInterval is how often an idle connection is probed. Viewers are often
// purely passive, so liveness comes from pings rather than a read deadline.
// Var so tests can shrink it.
var pingInterval = 30 * time.Second

// Handler upgrades to the team-calling channel. Only the team owner may
// operate a calling session; everyone else is rejected before join.
func Handler(h *hub.Hub, st *store.Store, authSvc *auth.Service, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		teamID, err := strconv.ParseInt(r.URL.Query().Get("teamId"), 10, 64)
		if err != nil || teamID <= 0 {
			http.Error(w, "missing or invalid teamId", http.StatusBadRequest)
			return
		}
		token := r.URL.Query().Get("token")
		if token == "" {
			http.Error(w, "missing token", http.StatusUnauthorized)
			return
		}
		claims, err := authSvc.ParseToken(token)
		if err != nil {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}

		team, err := st.TeamByID(r.Context(), teamID)
		if err != nil {
			http.Error(w, "team not found", http.StatusNotFound)
			return
		}
		if team.OwnerID != claims.UserID {
			http.Error(w, "only the team owner may run a calling session", http.StatusForbidden)
			return
		}

		members, err := st.TeamMembers(r.Context(), teamID)
		if err != nil {
			log.Error("loading roster failed", zap.Int64("team_id", teamID), zap.Error(err))
			http.Error(w, "failed to load roster", http.StatusInternalServerError)
			return
		}
		roster := make([]engine.Player, 0, len(members))
		for _, m := range members {
			roster = append(roster, engine.Player{UserID: m.UserID, DisplayName: m.Name})
		}

		reply := make(chan *session.Session, 1)
		h.Inbox() <- hub.EnsureSession{
			TeamID: teamID,
			State:  engine.NewState(team.CourtCount, roster, time.Now()),
			Reply:  reply,
		}
		sess := <-reply

		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")

		clientID := randID(8)
		log.Info("viewer connected",
			zap.Int64("team_id", teamID),
			zap.Int64("user_id", claims.UserID),
			zap.String("client_id", clientID))

		serveConn(r.Context(), conn, sess, clientID)
	}
}

// serveConn pumps one accepted connection against its session until the peer
// goes away, a keepalive ping fails, or the session closes the outbox.
func serveConn(parent context.Context, conn *websocket.Conn, sess *session.Session, clientID string) {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	out := make(chan []byte, 16)
	sess.Inbox() <- session.Join{ClientID: clientID, Outbox: out}
	defer func() { sess.Inbox() <- session.Leave{ClientID: clientID} }()

	// Writer: out is closed by the session on leave, shutdown, or slow-client
	// drop. Cancelling unblocks the read loop when that happens.
	go func() {
		defer cancel()
		for payload := range out {
			wctx, wcancel := context.WithTimeout(ctx, writeTimeout)
			_ = conn.Write(wctx, websocket.MessageText, payload)
			wcancel()
		}
	}()

	// Keepalive: a failed ping means the peer is gone.
	go func() {
		ticker := time.NewTicker(pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				pctx, pcancel := context.WithTimeout(ctx, writeTimeout)
				err := conn.Ping(pctx)
				pcancel()
				if err != nil {
					cancel()
					return
				}
			}
		}
	}()

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			// Clean close, dead peer, or cancelled: the deferred Leave
			// detaches us.
			return
		}

		var cm protocol.ClientMessage
		if err := json.Unmarshal(data, &cm); err != nil {
			writeError(ctx, conn, "bad json")
			continue
		}
		msg, ok := toSessionMsg(cm, clientID)
		if !ok {
			writeError(ctx, conn, "unknown message type")
			continue
		}
		sess.Inbox() <- msg
	}
}

// toSessionMsg maps a wire message onto the session mailbox.
func toSessionMsg(cm protocol.ClientMessage, clientID string) (session.Msg, bool) {
	if cm.Type == protocol.TypeRestoreState {
		return session.Restore{ClientID: clientID}, true
	}
	cmd := engine.Command{
		CourtID:  cm.CourtID,
		UserID:   cm.PlayerID,
		Position: cm.Position,
	}
	switch cm.Type {
	case protocol.TypeAutoAssign:
		cmd.Type = engine.CmdAutoAssign
	case protocol.TypeAssignPlayer:
		cmd.Type = engine.CmdAssignPlayer
	case protocol.TypeRemovePlayer:
		cmd.Type = engine.CmdRemovePlayer
	case protocol.TypeConfirmStart:
		cmd.Type = engine.CmdConfirmStartMatch
		for _, p := range cm.Players {
			cmd.Players = append(cmd.Players, engine.CourtSlot{UserID: p.UserID, Position: p.Position})
		}
	case protocol.TypeCancelPending:
		cmd.Type = engine.CmdCancelPending
	case protocol.TypeFinishMatch:
		cmd.Type = engine.CmdFinishMatch
	case protocol.TypeClearQueue:
		cmd.Type = engine.CmdClearQueue
	case protocol.TypeStartNewGame:
		cmd.Type = engine.CmdStartNewGame
	case protocol.TypeJoinQueue:
		cmd.Type = engine.CmdJoinQueue
	case protocol.TypeLeaveQueue:
		cmd.Type = engine.CmdLeaveQueue
	default:
		return nil, false
	}
	return session.FromClient{ClientID: clientID, Cmd: cmd}, true
}

func writeError(ctx context.Context, conn *websocket.Conn, message string) {
	payload, err := json.Marshal(protocol.NewError(message))
	if err != nil {
		return
	}
	wctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	_ = conn.Write(wctx, websocket.MessageText, payload)
}

func randID(length int) string {
	const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	b := make([]byte, length)
	for i := range b {
		b[i] = charset[rand.Intn(len(charset))]
	}
	return string(b)
}
