package signal

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dkeye/Gateway/internal/app"
	"github.com/dkeye/Gateway/internal/app/orch"
	"github.com/dkeye/Gateway/internal/config"
	"github.com/dkeye/Gateway/internal/core"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	srv   *httptest.Server
	o     *orch.Orchestrator
	rooms *app.RoomManagerImpl
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{
		ReadLimit:  1024,
		PingPeriod: time.Minute,
		WriteWait:  time.Second,
		SendBuffer: 16,
	}
	rooms := app.NewRoomManager()
	o := orch.New(app.NewRegistry(), rooms, app.NewRelay(rooms, app.DropPolicy{}), nil)
	ctrl := NewSignalWSController(o, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	r := gin.New()
	r.GET("/custom", func(c *gin.Context) { ctrl.HandleSignal(ctx, c) })

	srv := httptest.NewServer(r)
	t.Cleanup(func() {
		cancel()
		srv.Close()
	})
	return &testServer{srv: srv, o: o, rooms: rooms}
}

func (ts *testServer) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.srv.URL, "http") + "/custom"
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ws.Close() })
	return ws
}

func readJSON(t *testing.T, ws *websocket.Conn) map[string]any {
	t.Helper()
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	var m map[string]any
	require.NoError(t, ws.ReadJSON(&m))
	return m
}

func TestWebSocketRelay(t *testing.T) {
	ts := newTestServer(t)
	alice := ts.dial(t)
	bob := ts.dial(t)

	require.NoError(t, alice.WriteMessage(websocket.TextMessage, []byte(`{"type":"join","room":"r1","id":"alice"}`)))
	assert.Equal(t, map[string]any{"type": "joined", "room": "r1", "id": "alice"}, readJSON(t, alice))

	require.NoError(t, bob.WriteMessage(websocket.TextMessage, []byte(`{"type":"join","room":"r1","id":"bob"}`)))
	assert.Equal(t, map[string]any{"type": "joined", "room": "r1", "id": "bob"}, readJSON(t, bob))
	assert.Equal(t, map[string]any{"type": "player_join", "room": "r1", "id": "bob"}, readJSON(t, alice))

	require.NoError(t, alice.WriteMessage(websocket.TextMessage, []byte(`{"type":"chat","room":"r1","id":"alice","payload":{"text":"hi"}}`)))
	got := readJSON(t, bob)
	assert.Equal(t, "chat", got["type"])
	assert.Equal(t, map[string]any{"text": "hi"}, got["payload"])

	require.NoError(t, alice.WriteMessage(websocket.TextMessage, []byte(`{"type":"ping"}`)))
	assert.Equal(t, map[string]any{"type": "pong"}, readJSON(t, alice))

	require.NoError(t, bob.Close())
	assert.Equal(t, map[string]any{"type": "player_leave", "room": "r1", "id": "bob"}, readJSON(t, alice))
	assert.Eventually(t, func() bool { return ts.o.Registry.Len() == 1 }, 2*time.Second, 10*time.Millisecond)
}

func TestWebSocketMalformedFrameKeepsConnection(t *testing.T) {
	ts := newTestServer(t)
	ws := ts.dial(t)

	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte(`{oops`)))
	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte(`{"type":"ping"}`)))
	assert.Equal(t, map[string]any{"type": "pong"}, readJSON(t, ws))
}

func TestWebSocketReadLimitClosesConnection(t *testing.T) {
	ts := newTestServer(t)
	ws := ts.dial(t)
	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte(`{"type":"join","room":"big","id":"x"}`)))
	readJSON(t, ws)

	big := `{"type":"chat","payload":"` + strings.Repeat("a", 4096) + `"}`
	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte(big)))

	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := ws.ReadMessage()
	assert.Error(t, err)
	assert.Eventually(t, func() bool {
		_, ok := ts.rooms.Get("big")
		return !ok && ts.o.Registry.Len() == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestWsSignalConnBackpressure(t *testing.T) {
	c := &WsSignalConn{send: make(chan core.Frame, 1)}
	require.NoError(t, c.TrySend(core.Frame("a")))
	assert.ErrorIs(t, c.TrySend(core.Frame("b")), core.ErrBackpressure)
}
