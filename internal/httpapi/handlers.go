package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/DoyleJ11/league-ladder-backend/internal/engine"
	"github.com/DoyleJ11/league-ladder-backend/internal/service"
	"github.com/DoyleJ11/league-ladder-backend/internal/session"
	"github.com/DoyleJ11/league-ladder-backend/internal/store"
	"github.com/DoyleJ11/league-ladder-backend/internal/types"
)

type api struct {
	svc *service.Service
	log *zap.Logger
}

func (a *api) Healthz(w http.ResponseWriter, r *http.Request) {
	n, err := a.svc.Running(r.Context())
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Status   string `json:"status"`
		Sessions int    `json:"sessions"`
	}{Status: "ok", Sessions: n})
}

func (a *api) ListSessions(w http.ResponseWriter, r *http.Request) {
	list, err := a.svc.List(r.Context())
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, types.NewSummaries(list))
}

func (a *api) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req types.CreateRequest
	if !decode(w, r, &req) {
		return
	}
	sess, err := a.svc.Create(r.Context(), req.Title)
	if err != nil {
		a.fail(w, err)
		return
	}
	a.writeView(w, r, http.StatusCreated, sess)
}

// GetSession opens the session, falling back when the id is gone. The body
// carries the id that was actually opened.
func (a *api) GetSession(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}
	sess, err := a.svc.Open(r.Context(), id)
	if err != nil {
		a.fail(w, err)
		return
	}
	a.writeView(w, r, http.StatusOK, sess)
}

func (a *api) DeleteSession(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}
	next, err := a.svc.Delete(r.Context(), id)
	if err != nil {
		a.fail(w, err)
		return
	}
	a.writeView(w, r, http.StatusOK, next)
}

func (a *api) Score(w http.ResponseWriter, r *http.Request) {
	var req types.ScoreRequest
	if !decode(w, r, &req) {
		return
	}
	cmd := engine.Command{Type: engine.CmdRemoveWin, Player: req.Player}
	if req.Delta > 0 {
		cmd.Type = engine.CmdAddWin
	}
	a.mutate(w, r, func(ctx context.Context, s *session.Session) (session.Snapshot, error) {
		return s.Apply(ctx, cmd)
	})
}

func (a *api) Reset(w http.ResponseWriter, r *http.Request) {
	a.mutate(w, r, func(ctx context.Context, s *session.Session) (session.Snapshot, error) {
		return s.Apply(ctx, engine.Command{Type: engine.CmdReset})
	})
}

func (a *api) Rename(w http.ResponseWriter, r *http.Request) {
	var req types.NamesRequest
	if !decode(w, r, &req) {
		return
	}
	a.mutate(w, r, func(ctx context.Context, s *session.Session) (session.Snapshot, error) {
		return s.Rename(ctx, [engine.Players]string{req.P1, req.P2})
	})
}

func (a *api) SetSounds(w http.ResponseWriter, r *http.Request) {
	var req types.SoundsRequest
	if !decode(w, r, &req) {
		return
	}
	sounds := session.Sounds{Win: req.Win, Promoted: req.Promoted, Comeback: req.Comeback}
	a.mutate(w, r, func(ctx context.Context, s *session.Session) (session.Snapshot, error) {
		return s.SetSounds(ctx, sounds)
	})
}

// mutate runs fn against the session named in the path and answers with the
// resulting snapshot. Unlike GetSession there is no fallback.
func (a *api) mutate(w http.ResponseWriter, r *http.Request, fn func(context.Context, *session.Session) (session.Snapshot, error)) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}
	sess, err := a.svc.Session(r.Context(), id)
	if err != nil {
		a.fail(w, err)
		return
	}
	snap, err := fn(r.Context(), sess)
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, types.StateSnapshot(snap))
}

func (a *api) writeView(w http.ResponseWriter, r *http.Request, status int, sess *session.Session) {
	v, err := sess.View(r.Context())
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, status, types.NewSessionView(v.Version, v.Game))
}

func (a *api) fail(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, engine.ErrInvalidPlayer), errors.Is(err, engine.ErrUnsupportedCommand),
		errors.Is(err, service.ErrTitleRequired):
		status = http.StatusBadRequest
	case errors.Is(err, store.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, session.ErrClosed):
		status = http.StatusGone
	case errors.Is(err, context.Canceled):
		return
	default:
		a.log.Error("request failed", zap.Error(err))
	}
	writeJSON(w, status, types.ErrorMessage(err.Error()))
}

func sessionID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeJSON(w, http.StatusBadRequest, types.ErrorMessage("bad id"))
		return 0, false
	}
	return id, true
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, types.ErrorMessage("bad json"))
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
