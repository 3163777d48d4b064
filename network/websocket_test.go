package network

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

func TestWebSocketHandlerRoundTripsBinaryFrames(t *testing.T) {
	pool, err := NewPool(DefaultPoolConfig())
	require.NoError(t, err)
	t.Cleanup(func() { pool.Close() })

	received := make(chan []byte, 1)
	handler := WebSocketHandler(pool, func(conn *Connection) error {
		buf := make([]byte, 5)
		n, err := conn.Read(buf)
		require.NoError(t, err)
		received <- buf[:n]
		return nil
	})

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { ws.Close() })

	require.NoError(t, ws.WriteMessage(websocket.BinaryMessage, []byte("hello")))

	select {
	case got := <-received:
		require.Equal(t, "hello", string(got))
	case <-time.After(time.Second):
		t.Fatal("connection handler never observed the written frame")
	}
}
