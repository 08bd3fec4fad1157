// internal/handlers/room_ws_test.go
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/jason-s-yu/spyfall/internal/auth"
	"github.com/jason-s-yu/spyfall/internal/game"
	"github.com/jason-s-yu/spyfall/internal/lobby"
	"github.com/jason-s-yu/spyfall/internal/locations"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	*httptest.Server
	reg *lobby.Registry
	ds  *locations.Dataset
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)

	ds, err := locations.LoadEmbedded()
	require.NoError(t, err)
	signer, err := auth.NewSigner(time.Hour)
	require.NoError(t, err)
	reg := lobby.NewRegistry(signer, func(code string) *game.Game {
		return game.New(code, game.Config{Dataset: ds, TimeUnit: time.Hour, Logger: logrus.NewEntry(logger)})
	}, logrus.NewEntry(logger))

	mux := http.NewServeMux()
	mux.Handle("/ws", RoomWSHandler(logger, reg))
	mux.Handle("/themes", ThemesHandler(ds))
	mux.Handle("/healthz", HealthHandler(reg))
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return &testServer{Server: srv, reg: reg, ds: ds}
}

func (s *testServer) dial(t *testing.T, ctx context.Context) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(s.URL, "http") + "/ws"
	c, _, err := websocket.Dial(ctx, url, &websocket.DialOptions{Subprotocols: []string{"room"}})
	require.NoError(t, err)
	t.Cleanup(func() { c.Close(websocket.StatusNormalClosure, "") })
	return c
}

// readUntil reads messages until one of type typ arrives.
func readUntil(t *testing.T, ctx context.Context, c *websocket.Conn, typ string) map[string]interface{} {
	t.Helper()
	for {
		var msg map[string]interface{}
		require.NoError(t, wsjson.Read(ctx, c, &msg), "waiting for %s", typ)
		if msg["type"] == typ {
			return msg
		}
	}
}

func TestCreateJoinAndStart(t *testing.T) {
	s := newTestServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	host := s.dial(t, ctx)
	require.NoError(t, wsjson.Write(ctx, host, map[string]interface{}{"type": "create_room", "name": "Alice"}))
	created := readUntil(t, ctx, host, "room_created")
	code, _ := created["roomCode"].(string)
	require.Len(t, code, lobby.RoomCodeLength)
	assert.Equal(t, true, created["isHost"])
	assert.NotEmpty(t, created["token"])

	for _, name := range []string{"Bob", "Carol"} {
		c := s.dial(t, ctx)
		require.NoError(t, wsjson.Write(ctx, c, map[string]interface{}{
			"type": "join_room", "name": name, "roomCode": strings.ToLower(code),
		}))
		joined := readUntil(t, ctx, c, "join_success")
		assert.Equal(t, false, joined["isHost"])
	}

	require.NoError(t, wsjson.Write(ctx, host, map[string]interface{}{"type": "start_round"}))
	started := readUntil(t, ctx, host, "round_started")
	assert.EqualValues(t, 1, started["round"])

	g, ok := s.reg.Get(code)
	require.True(t, ok)
	assert.Equal(t, game.StatePlaying, g.State())
}

func TestActionsBeforeSeatingAreRejected(t *testing.T) {
	s := newTestServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c := s.dial(t, ctx)
	require.NoError(t, wsjson.Write(ctx, c, map[string]interface{}{"type": "start_round"}))
	msg := readUntil(t, ctx, c, "error")
	assert.Contains(t, msg["message"], "first")

	require.NoError(t, c.Write(ctx, websocket.MessageText, []byte("{nope")))
	msg = readUntil(t, ctx, c, "error")
	assert.Equal(t, "Invalid JSON format", msg["message"])

	require.NoError(t, wsjson.Write(ctx, c, map[string]interface{}{"type": "join_room", "name": "Bob", "roomCode": "ZZZZZ"}))
	msg = readUntil(t, ctx, c, "error")
	assert.Equal(t, "Room not found.", msg["message"])
}

func TestReconnectWithToken(t *testing.T) {
	s := newTestServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	first := s.dial(t, ctx)
	require.NoError(t, wsjson.Write(ctx, first, map[string]interface{}{"type": "create_room", "name": "Alice"}))
	created := readUntil(t, ctx, first, "room_created")
	first.Close(websocket.StatusNormalClosure, "bye")

	second := s.dial(t, ctx)
	require.NoError(t, wsjson.Write(ctx, second, map[string]interface{}{
		"type":     "join_room",
		"name":     "Alice",
		"roomCode": created["roomCode"],
		"token":    created["token"],
	}))
	back := readUntil(t, ctx, second, "join_success")
	assert.Equal(t, created["playerId"], back["playerId"])

	g, ok := s.reg.Get(created["roomCode"].(string))
	require.True(t, ok)
	assert.Len(t, g.Roster(), 1)
}

func TestWrongSubprotocolIsClosed(t *testing.T) {
	s := newTestServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	url := "ws" + strings.TrimPrefix(s.URL, "http") + "/ws"
	c, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	defer c.Close(websocket.StatusNormalClosure, "")

	_, _, err = c.Read(ctx)
	assert.Equal(t, BadSubprotocolError, websocket.CloseStatus(err))
}

func TestThemesAndHealth(t *testing.T) {
	s := newTestServer(t)

	resp, err := http.Get(s.URL + "/themes")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var body struct {
		Themes []themeInfo `json:"themes"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.NotEmpty(t, body.Themes)
	for _, th := range body.Themes {
		assert.Equal(t, s.ds.Count(th.ID), th.Locations)
	}

	resp2, err := http.Get(s.URL + "/healthz")
	require.NoError(t, err)
	defer resp2.Body.Close()
	assert.Equal(t, http.StatusOK, resp2.StatusCode)
}
