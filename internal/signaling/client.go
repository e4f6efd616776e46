package signaling

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/BioHazard786/meshroom/internal/dns"
	"github.com/BioHazard786/meshroom/internal/protocol"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
	queueSize      = 32
)

// ErrClosed is returned by Send once the channel is closed.
var ErrClosed = errors.New("signaling channel closed")

// Client manages the WebSocket connection to the relay.
type Client struct {
	serverURL string
	codec     protocol.Codec
	conn      *websocket.Conn
	log       *slog.Logger

	incoming chan *protocol.Message
	outgoing chan *protocol.Message

	// done is closed by Close; writerDone when writePump exits for any
	// reason, so Send never blocks on a dead connection.
	done       chan struct{}
	writerDone chan struct{}
	closeOnce  sync.Once
}

// NewClient creates a new signaling client. codec is the preferred encoding;
// the relay may still settle on JSON.
func NewClient(serverURL string, codec protocol.Codec, logger *slog.Logger) *Client {
	if codec == nil {
		codec = protocol.JSON
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		serverURL:  serverURL,
		codec:      codec,
		log:        logger,
		incoming:   make(chan *protocol.Message, queueSize),
		outgoing:   make(chan *protocol.Message, queueSize),
		done:       make(chan struct{}),
		writerDone: make(chan struct{}),
	}
}

// Connect establishes WebSocket connection to the relay.
func (c *Client) Connect(ctx context.Context) error {
	u, err := url.Parse(c.serverURL)
	if err != nil {
		return fmt.Errorf("invalid server URL: %w", err)
	}

	// Copy the default dialer so the resolver hook stays local to us.
	dialer := *websocket.DefaultDialer
	dialer.Subprotocols = []string{c.codec.Subprotocol()}
	dialer.NetDialContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
		host, port, err := net.SplitHostPort(addr)
		if err != nil {
			return nil, err
		}

		resolvedIP, err := dns.Lookup(ctx, host)
		if err != nil {
			return nil, fmt.Errorf("dns lookup failed: %w", err)
		}

		var d net.Dialer
		return d.DialContext(ctx, network, net.JoinHostPort(resolvedIP, port))
	}

	conn, _, err := dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}

	c.conn = conn
	c.codec = protocol.CodecFor(conn.Subprotocol())
	c.log.Debug("connected to relay", "url", u.Redacted(), "codec", c.codec.Name())

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	go c.readPump()
	go c.writePump()

	return nil
}

// Codec reports the encoding in use on the connection.
func (c *Client) Codec() protocol.Codec {
	return c.codec
}

// readPump reads messages from the WebSocket connection. Incoming is closed
// when it exits.
func (c *Client) readPump() {
	defer func() {
		c.conn.Close()
		close(c.incoming)
	}()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Warn("relay connection lost", "err", err)
			}
			return
		}

		var msg protocol.Message
		if err := c.codec.Unmarshal(data, &msg); err != nil {
			c.log.Warn("dropping undecodable frame", "err", err)
			continue
		}

		select {
		case c.incoming <- &msg:
		case <-c.done:
			return
		}
	}
}

// writePump writes messages to the WebSocket connection and sends periodic pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()
		close(c.writerDone)
		c.conn.Close()
	}()

	for {
		select {
		case message := <-c.outgoing:
			frame, err := c.codec.Marshal(message)
			if err != nil {
				c.log.Error("encode failed", "type", message.Type, "err", err)
				continue
			}
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(c.codec.FrameType(), frame); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.done:
			c.flush()
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

// flush writes whatever was queued before Close, typically the final leave.
func (c *Client) flush() {
	for {
		select {
		case message := <-c.outgoing:
			frame, err := c.codec.Marshal(message)
			if err != nil {
				continue
			}
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(c.codec.FrameType(), frame); err != nil {
				return
			}
		default:
			return
		}
	}
}

// Send queues a message for the relay. It returns ErrClosed once the
// connection is closed or has failed.
func (c *Client) Send(msg *protocol.Message) error {
	select {
	case <-c.done:
		return ErrClosed
	case <-c.writerDone:
		return ErrClosed
	default:
	}

	select {
	case c.outgoing <- msg:
		return nil
	case <-c.done:
		return ErrClosed
	case <-c.writerDone:
		return ErrClosed
	}
}

// Incoming returns the channel for receiving messages. It is closed when the
// relay connection ends.
func (c *Client) Incoming() <-chan *protocol.Message {
	return c.incoming
}

// Close shuts the connection down. It is safe to call more than once and
// from several goroutines.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		if c.conn == nil {
			close(c.incoming)
		}
	})
}
