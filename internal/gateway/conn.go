package gateway

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Keepalive timing: the server pings on pingPeriod and expects a pong (or
// any read) within pongWait. pingPeriod must be shorter than pongWait.
const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 50 * time.Second
)

// wsConn wraps a websocket connection with a write mutex. gorilla/websocket
// allows only one concurrent writer, but acks from the read loop and
// server-initiated monitoring-requests from the violation coordinator write
// from different goroutines.
type wsConn struct {
	mu sync.Mutex
	ws *websocket.Conn
}

func newWSConn(ws *websocket.Conn) *wsConn {
	return &wsConn{ws: ws}
}

// Send marshals the payload into an envelope and writes it as one text
// frame. Implements the session domain's Conn.
func (c *wsConn) Send(messageType string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	frame, err := json.Marshal(Envelope{Type: messageType, Payload: raw})
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	return c.ws.WriteMessage(websocket.TextMessage, frame)
}

func (c *wsConn) ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
}

func (c *wsConn) close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws.Close()
}
