package relay

import (
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/BioHazard786/meshroom/internal/protocol"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 64 * 1024 // 64 KB - enough for SDP with many candidates

	// sendBufferSize bounds the outbound queue; a client that falls this far
	// behind is disconnected.
	sendBufferSize = 256
)

// Client is a wrapper for a single websocket connection (a participant).
type Client struct {
	// ID is the peer-id assigned when the connection was accepted.
	ID string

	// Hub is the hub that manages this client.
	Hub *Hub

	// Conn is the websocket connection. It is nil for clients that only
	// exist inside the hub, such as in tests.
	Conn *websocket.Conn

	// Codec encodes frames for this connection.
	Codec protocol.Codec

	// Room, when set before registration, is joined right away.
	Room string

	// Send is a buffered channel for all outbound messages. The hub writes
	// to it and WritePump drains it to the websocket.
	Send chan *protocol.Message
}

// NewClient creates a client with a fresh peer-id.
func NewClient(hub *Hub, conn *websocket.Conn, codec protocol.Codec) *Client {
	if codec == nil {
		codec = protocol.JSON
	}
	return &Client{
		ID:    uuid.NewString(),
		Hub:   hub,
		Conn:  conn,
		Codec: codec,
		Send:  make(chan *protocol.Message, sendBufferSize),
	}
}

func (c *Client) logger() *slog.Logger {
	return c.Hub.log.With("peer", c.ID)
}

// ReadPump pumps messages from the websocket connection to the hub.
//
// The application runs ReadPump in a per-connection goroutine. The application
// ensures that there is at most one reader on a connection by executing all
// reads from this goroutine.
func (c *Client) ReadPump() {
	defer func() {
		c.Hub.unregister(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.logger().Warn("read failed", "err", err)
			}
			return
		}

		var msg protocol.Message
		if err := c.Codec.Unmarshal(data, &msg); err != nil {
			// A bad frame is dropped, the connection stays up.
			c.logger().Warn("dropping undecodable frame", "codec", c.Codec.Name(), "err", err)
			continue
		}

		if !c.Hub.submit(c, &msg) {
			return
		}
	}
}

// WritePump pumps messages from the hub to the websocket connection.
//
// A goroutine running WritePump is started for each connection. The
// application ensures that there is at most one writer to a connection by
// executing all writes from this goroutine.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			frame, err := c.Codec.Marshal(message)
			if err != nil {
				c.logger().Error("encode failed", "type", message.Type, "err", err)
				continue
			}
			if err := c.Conn.WriteMessage(c.Codec.FrameType(), frame); err != nil {
				c.logger().Debug("write failed", "err", err)
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
