package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/DoyleJ11/league-ladder-backend/internal/engine"
	"github.com/DoyleJ11/league-ladder-backend/internal/service"
	"github.com/DoyleJ11/league-ladder-backend/internal/session"
	"github.com/DoyleJ11/league-ladder-backend/internal/types"
)

const (
	writeTimeout = 3 * time.Second
	idleTimeout  = 5 * time.Minute
)

func Handler(svc *service.Service, log *zap.Logger) http.HandlerFunc {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("ws")

	return func(w http.ResponseWriter, r *http.Request) {
		var id int64
		if raw := r.URL.Query().Get("id"); raw != "" {
			parsed, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				http.Error(w, "bad id", http.StatusBadRequest)
				return
			}
			id = parsed
		}

		// Unknown ids fall back like the REST surface does; the first
		// snapshot tells the client which session it got.
		sess, err := svc.Open(r.Context(), id)
		if err != nil {
			log.Error("open session", zap.Int64("session", id), zap.Error(err))
			http.Error(w, "failed to open session", http.StatusInternalServerError)
			return
		}

		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			// In dev ONLY, you can loosen origin checks:
			// OriginPatterns: []string{"http://localhost:*", "http://127.0.0.1:*"},
		})
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")

		out := make(chan session.Snapshot, 8)
		clientID := uuid.NewString()
		clog := log.With(zap.Int64("session", sess.ID()), zap.String("client", clientID))

		if !sess.Send(session.Join{ClientID: clientID, Outbox: out}) {
			conn.Close(websocket.StatusGoingAway, "session closed")
			return
		}
		defer sess.Send(session.Leave{ClientID: clientID})
		clog.Debug("client joined")

		// Writer goroutine
		writeCtx, writeCancel := context.WithCancel(r.Context())
		defer writeCancel()
		go func() {
			for snap := range out {
				ctx, cancel := context.WithTimeout(writeCtx, writeTimeout)
				err := wsjson.Write(ctx, conn, types.StateSnapshot(snap))
				cancel()
				if err != nil {
					clog.Debug("write failed", zap.Error(err))
				}
			}
			// Outbox closed: the session stopped or dropped us as too slow.
			conn.Close(websocket.StatusGoingAway, "session closed")
		}()

		// Reader loop
		for {
			ctx, cancel := context.WithTimeout(r.Context(), idleTimeout)
			_, data, err := conn.Read(ctx)
			cancel()
			if err != nil {
				switch websocket.CloseStatus(err) {
				case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				default:
					clog.Debug("read ended", zap.Error(err))
				}
				return
			}

			var cm types.ClientMessage
			if err := json.Unmarshal(data, &cm); err != nil {
				writeError(r.Context(), conn, "bad json")
				continue
			}

			reply := make(chan session.Result, 1)
			msg, ok := toSessionMsg(cm, reply)
			if !ok {
				writeError(r.Context(), conn, "unknown type")
				continue
			}
			if !sess.Send(msg) {
				return
			}

			select {
			case res := <-reply:
				if res.Err != nil {
					writeError(r.Context(), conn, res.Err.Error())
				}
			case <-sess.Done():
				return
			case <-r.Context().Done():
				return
			}
		}
	}
}

func toSessionMsg(m types.ClientMessage, reply chan session.Result) (session.Msg, bool) {
	switch m.Type {
	case "AddWin":
		return session.FromClient{Cmd: engine.Command{Type: engine.CmdAddWin, Player: m.Player}, Reply: reply}, true
	case "RemoveWin":
		return session.FromClient{Cmd: engine.Command{Type: engine.CmdRemoveWin, Player: m.Player}, Reply: reply}, true
	case "Reset":
		return session.FromClient{Cmd: engine.Command{Type: engine.CmdReset}, Reply: reply}, true
	case "Rename":
		return session.Rename{Names: m.Names, Reply: reply}, true
	default:
		return nil, false
	}
}

func writeError(ctx context.Context, conn *websocket.Conn, msg string) {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	_ = wsjson.Write(ctx, conn, types.ErrorMessage(msg))
}
