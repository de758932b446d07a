package server

import (
	"context"
	"net"
	"net/http"
	"testing"
	"time"

	"bloghub/internal/models"
	"bloghub/internal/testutil"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// serve runs the app on a loopback listener and returns its ws base URL.
func (e *testEnv) serve(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = e.app.Listener(ln) }()
	t.Cleanup(func() { _ = e.app.Shutdown() })
	return "ws://" + ln.Addr().String()
}

func dialNotifications(base, token string) (*websocket.Conn, *http.Response, error) {
	header := http.Header{}
	if token != "" {
		header.Set("Authorization", "Bearer "+token)
	}
	dialer := websocket.Dialer{HandshakeTimeout: 2 * time.Second}
	return dialer.Dial(base+"/api/ws/notifications", header)
}

func TestNotificationsWebSocket_Delivers(t *testing.T) {
	env := newTestServer(t, "", nil)
	u := testutil.CreateUser(t, env.db, "wendy", models.AccessStatusApproved)
	token := env.login(t, u)
	base := env.serve(t)

	conn, resp, err := dialNotifications(base, token)
	require.NoError(t, err)
	defer conn.Close()
	assert.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)

	require.Eventually(t, func() bool {
		return env.srv.hub.Connections(u.ID) == 1
	}, 2*time.Second, 10*time.Millisecond)

	env.srv.hub.Deliver(u.ID, []byte(`{"type":"notification"}`))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	kind, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, websocket.TextMessage, kind)
	assert.JSONEq(t, `{"type":"notification"}`, string(msg))

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool {
		return env.srv.hub.Connections(u.ID) == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestNotificationsWebSocket_HubShutdownClosesSocket(t *testing.T) {
	env := newTestServer(t, "", nil)
	u := testutil.CreateUser(t, env.db, "wendy", models.AccessStatusApproved)
	base := env.serve(t)

	conn, _, err := dialNotifications(base, env.login(t, u))
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool {
		return env.srv.hub.Connections(u.ID) == 1
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, env.srv.hub.Shutdown(context.Background()))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err = conn.ReadMessage()
	require.Error(t, err)
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), "got %v", err)
}

func TestNotificationsWebSocket_Rejects(t *testing.T) {
	t.Run("no session", func(t *testing.T) {
		env := newTestServer(t, "", nil)
		base := env.serve(t)

		_, resp, err := dialNotifications(base, "")
		require.ErrorIs(t, err, websocket.ErrBadHandshake)
		require.NotNil(t, resp)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("realtime disabled", func(t *testing.T) {
		env := newTestServer(t, "realtime_notifications=off", nil)
		u := testutil.CreateUser(t, env.db, "wendy", models.AccessStatusApproved)
		token := env.login(t, u)
		base := env.serve(t)

		_, resp, err := dialNotifications(base, token)
		require.ErrorIs(t, err, websocket.ErrBadHandshake)
		require.NotNil(t, resp)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("plain GET", func(t *testing.T) {
		env := newTestServer(t, "", nil)
		u := testutil.CreateUser(t, env.db, "wendy", models.AccessStatusApproved)

		resp := env.request(t, http.MethodGet, "/api/ws/notifications", nil, env.login(t, u))
		assert.Equal(t, http.StatusUpgradeRequired, resp.StatusCode)
	})
}
