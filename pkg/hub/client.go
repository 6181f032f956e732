package hub

import (
	"time"

	"github.com/gofiber/websocket/v2"
)

const (
	// writeWait is how long to wait for a write to complete
	writeWait = 10 * time.Second

	// pongWait is how long to wait for a pong response
	pongWait = 60 * time.Second

	// pingPeriod must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// maxMessageSize bounds what a browser may send; clients only read.
	maxMessageSize = 4 * 1024

	sendBuffer = 256
)

// Client represents a single websocket connection
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

// Serve registers conn with the hub and pumps messages to it until the
// connection closes or the hub stops. Call it from the websocket handler;
// it blocks until both pumps have stopped. greeting, when given, is
// written before any broadcast.
func (h *Hub) Serve(conn *websocket.Conn, greeting ...[]byte) {
	c := &Client{
		hub:  h,
		conn: conn,
		send: make(chan []byte, sendBuffer),
	}
	for _, msg := range greeting {
		c.send <- msg
	}

	select {
	case h.register <- c:
	case <-h.done:
		return
	}

	// The conn must not be used after the handler returns, so wait for
	// both pumps. writePump closes the conn, which ends readPump.
	read := make(chan struct{})
	go func() {
		defer close(read)
		c.readPump()
	}()
	c.writePump()
	<-read
}

// readPump reads until the connection fails, then unregisters the client.
// Browsers send nothing useful; reading detects disconnection and pongs.
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// writePump is the only writer on the connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
