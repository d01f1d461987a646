package services

import (
	"encoding/json"
	"time"

	"sage/types"

	"github.com/charmbracelet/log"
	"github.com/gofiber/contrib/websocket"
)

const clientBuffer = 32

// wsConn is the part of *websocket.Conn a client uses.
type wsConn interface {
	ReadMessage() (int, []byte, error)
	WriteMessage(messageType int, data []byte) error
	SetReadLimit(limit int64)
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetPongHandler(h func(appData string) error)
	Close() error
}

type WSClient struct {
	id   string
	conn wsConn
	send chan []byte
	done chan struct{}
}

func NewWSClient(id string, conn wsConn) *WSClient {
	return &WSClient{
		id:   id,
		conn: conn,
		send: make(chan []byte, clientBuffer),
		done: make(chan struct{}),
	}
}

// close runs under the hub's write lock, or after c left the client map.
func (c *WSClient) close() {
	safeCloseBytes(c.send)
	_ = c.conn.Close()
}

func (c *WSClient) writeLoop() {
	defer close(c.done)
	ping := time.NewTicker(10 * time.Second)
	defer ping.Stop()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ping.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *WSClient) readPump(onMessage func(types.ClientMessage), onDone func()) {
	defer onDone()
	logger := log.With("component", "ws", "session", c.id)

	c.conn.SetReadLimit(1 << 20)
	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))

		var msg types.ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			logger.Warn("ignoring malformed client message", "err", err)
			continue
		}
		onMessage(msg)
	}
}
