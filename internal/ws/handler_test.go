package ws

import (
	"context"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DoyleJ11/league-ladder-backend/internal/engine"
	"github.com/DoyleJ11/league-ladder-backend/internal/service"
	"github.com/DoyleJ11/league-ladder-backend/internal/store"
	"github.com/DoyleJ11/league-ladder-backend/internal/types"
)

func dial(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + query
	conn, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "") })
	return conn
}

func read(t *testing.T, conn *websocket.Conn) types.ServerMessage {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	var msg types.ServerMessage
	require.NoError(t, wsjson.Read(ctx, conn, &msg))
	return msg
}

func write(t *testing.T, conn *websocket.Conn, msg types.ClientMessage) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, wsjson.Write(ctx, conn, msg))
}

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	svc := service.New(ctx, store.NewMemory(), service.Config{})
	srv := httptest.NewServer(Handler(svc, nil))
	t.Cleanup(func() {
		srv.Close()
		cancel()
	})
	return srv
}

func TestHandler_PushesSnapshotsWithEvents(t *testing.T) {
	srv := newServer(t)
	conn := dial(t, srv, "")

	first := read(t, conn)
	require.Equal(t, "StateSnapshot", first.Type)
	require.NotNil(t, first.Session)
	assert.Empty(t, first.Events)
	id := first.Session.ID

	for i := 0; i < 3; i++ {
		write(t, conn, types.ClientMessage{Type: "AddWin", Player: 0})
	}
	var last types.ServerMessage
	for i := 0; i < 3; i++ {
		last = read(t, conn)
	}

	assert.Equal(t, 3, last.Version)
	assert.Equal(t, id, last.Session.ID)
	assert.Equal(t, [4]int{0, 1, 0, 0}, last.Session.Players[0].Wins)
	require.Len(t, last.Events, 1)
	assert.Equal(t, engine.EvtPromoted, last.Events[0].Kind)
	assert.Equal(t, "Bronze", last.Events[0].League)
}

func TestHandler_SecondClientSeesChanges(t *testing.T) {
	srv := newServer(t)
	a := dial(t, srv, "")
	id := read(t, a).Session.ID

	b := dial(t, srv, "?id="+strconv.FormatInt(id, 10))
	require.Equal(t, id, read(t, b).Session.ID)

	write(t, a, types.ClientMessage{Type: "Rename", Names: [2]string{"Anna", " "}})
	read(t, a)

	got := read(t, b)
	assert.Equal(t, "Anna", got.Session.Players[0].Name)
	assert.Equal(t, "Spieler 2", got.Session.Players[1].Name)
}

func TestHandler_Errors(t *testing.T) {
	srv := newServer(t)
	conn := dial(t, srv, "")
	read(t, conn)

	write(t, conn, types.ClientMessage{Type: "Dance"})
	assert.Equal(t, "unknown type", read(t, conn).Error)

	write(t, conn, types.ClientMessage{Type: "AddWin", Player: 2})
	assert.Equal(t, engine.ErrInvalidPlayer.Error(), read(t, conn).Error)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, conn.Write(ctx, websocket.MessageText, []byte("{")))
	assert.Equal(t, "bad json", read(t, conn).Error)
}

func TestHandler_BadID(t *testing.T) {
	srv := newServer(t)
	resp, err := srv.Client().Get(srv.URL + "?id=abc")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, 400, resp.StatusCode)
}
