package liveserver

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dial(t *testing.T, srv *httptest.Server, origin string) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	headers := http.Header{}
	if origin != "" {
		headers.Set("Origin", origin)
	}
	conn, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), headers)
	if conn != nil {
		t.Cleanup(func() { _ = conn.Close() })
	}
	return conn, resp, err
}

func TestServer_StreamsEvents(t *testing.T) {
	hub, _ := runHub(t)
	srv := httptest.NewServer(NewServer(hub, nil, []string{"http://dash.local"}))
	defer srv.Close()

	conn, _, err := dial(t, srv, "http://dash.local")
	require.NoError(t, err)
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	hub.Publish("evaluate_arbitrage", map[string]interface{}{"opportunity": true})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg Message
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "evaluate_arbitrage", msg.Type)
	assert.Equal(t, map[string]interface{}{"opportunity": true}, msg.Data)

	require.NoError(t, conn.Close())
	assert.Eventually(t, func() bool { return hub.ClientCount() == 0 }, time.Second, 5*time.Millisecond)
}

func TestServer_RejectsOrigins(t *testing.T) {
	hub, _ := runHub(t)
	srv := httptest.NewServer(NewServer(hub, nil, []string{"http://dash.local"}))
	defer srv.Close()

	for _, origin := range []string{"", "http://evil.local"} {
		_, resp, err := dial(t, srv, origin)
		require.Error(t, err, origin)
		require.NotNil(t, resp)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	}
	assert.Equal(t, 0, hub.ClientCount())
}

func TestServer_ConnectionLimit(t *testing.T) {
	hub, _ := runHub(t)
	ws := NewServer(hub, nil, []string{"*"})
	ws.SetLimits(1, 100, 100)
	srv := httptest.NewServer(ws)
	defer srv.Close()

	_, _, err := dial(t, srv, "http://a.local")
	require.NoError(t, err)

	_, resp, err := dial(t, srv, "http://a.local")
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestServer_RateLimit(t *testing.T) {
	hub, _ := runHub(t)
	ws := NewServer(hub, nil, []string{"*"})
	ws.SetLimits(10, 0.001, 1)
	srv := httptest.NewServer(ws)
	defer srv.Close()

	_, _, err := dial(t, srv, "http://a.local")
	require.NoError(t, err)

	_, resp, err := dial(t, srv, "http://a.local")
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
}
