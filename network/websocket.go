package network

import (
	"bytes"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// wsUpgrader negotiates the "mqtt" subprotocol (spec §4.7 WS/WSS listener)
// and accepts binary frames only, matching the wire encoding every other
// transport uses.
var wsUpgrader = websocket.Upgrader{
	Subprotocols:    []string{"mqtt"},
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// wsConn adapts a *websocket.Conn to net.Conn, reassembling MQTT packets
// out of binary WebSocket frames on Read and framing each Write as one
// binary message — the two transports otherwise share the entire C5/C7
// pipeline unmodified.
type wsConn struct {
	ws  *websocket.Conn
	buf bytes.Buffer
}

func newWSConn(ws *websocket.Conn) *wsConn {
	return &wsConn{ws: ws}
}

func (c *wsConn) Read(b []byte) (int, error) {
	for c.buf.Len() == 0 {
		msgType, data, err := c.ws.ReadMessage()
		if err != nil {
			return 0, err
		}
		if msgType != websocket.BinaryMessage {
			continue
		}
		c.buf.Write(data)
	}
	return c.buf.Read(b)
}

func (c *wsConn) Write(b []byte) (int, error) {
	if err := c.ws.WriteMessage(websocket.BinaryMessage, b); err != nil {
		return 0, err
	}
	return len(b), nil
}

func (c *wsConn) Close() error                       { return c.ws.Close() }
func (c *wsConn) LocalAddr() net.Addr                { return c.ws.LocalAddr() }
func (c *wsConn) RemoteAddr() net.Addr               { return c.ws.RemoteAddr() }
func (c *wsConn) SetReadDeadline(t time.Time) error  { return c.ws.SetReadDeadline(t) }
func (c *wsConn) SetWriteDeadline(t time.Time) error { return c.ws.SetWriteDeadline(t) }

func (c *wsConn) SetDeadline(t time.Time) error {
	if err := c.SetReadDeadline(t); err != nil {
		return err
	}
	return c.SetWriteDeadline(t)
}

var _ net.Conn = (*wsConn)(nil)

// WebSocketHandler upgrades an HTTP request to a WebSocket connection,
// wraps it as a net.Conn, and feeds it through handler exactly like a TCP
// accept — so WS/WSS shares ServeMQTT, the pool, and every hook callback
// with the plain listener.
func WebSocketHandler(pool *Pool, handler ConnectionHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ws, err := wsUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}

		conn := NewConnection(newWSConn(ws), wsConnectionID(ws), &ConnectionConfig{})
		if err := pool.Add(conn); err != nil {
			conn.Close()
			return
		}

		if err := handler(conn); err != nil {
			pool.Remove(conn.ID())
		}
	}
}

func wsConnectionID(ws *websocket.Conn) string {
	return "ws-" + ws.RemoteAddr().String() + "-" + time.Now().Format("150405.000000000")
}
