package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dial(t *testing.T, srv *httptest.Server, sessionID string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?session_id=" + sessionID
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestHub_FiltersBySession(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWebSocket))
	defer srv.Close()

	alpha := dial(t, srv, "alpha")
	all := dial(t, srv, "")

	require.Eventually(t, func() bool { return hub.ClientCount() == 2 }, time.Second, 5*time.Millisecond)

	hub.Publish("beta", "frame", map[string]float64{"raw": 1.5})
	hub.Publish("alpha", "stage", map[string]string{"stage": "OPERATIONAL"})

	// клиент без фильтра получает оба события по порядку
	var first, second Message
	all.SetReadDeadline(time.Now().Add(time.Second))
	require.NoError(t, all.ReadJSON(&first))
	require.NoError(t, all.ReadJSON(&second))
	assert.Equal(t, "beta", first.SessionID)
	assert.Equal(t, "stage", second.Type)

	// клиент alpha получает только свое
	var own Message
	alpha.SetReadDeadline(time.Now().Add(time.Second))
	require.NoError(t, alpha.ReadJSON(&own))
	assert.Equal(t, "alpha", own.SessionID)

	data, err := json.Marshal(own.Data)
	require.NoError(t, err)
	assert.JSONEq(t, `{"stage":"OPERATIONAL"}`, string(data))
}

func TestHub_UnregistersOnClose(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWebSocket))
	defer srv.Close()

	conn := dial(t, srv, "alpha")
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	conn.Close()
	require.Eventually(t, func() bool { return hub.ClientCount() == 0 }, time.Second, 5*time.Millisecond)
}
