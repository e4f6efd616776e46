package relay

import (
	"context"
	"log/slog"

	"github.com/BioHazard786/meshroom/internal/protocol"
)

// Envelope is a message read from a client, tagged with its sender.
type Envelope struct {
	Client  *Client
	Message *protocol.Message
}

// Hub is the central brain of the relay.
// It owns the session registry and every connected client. All state is
// mutated from the single goroutine running Run, so nothing here is locked.
type Hub struct {
	registry *Registry
	clients  map[string]*Client

	// Register is a channel for registering new clients.
	Register chan *Client

	// Unregister is a channel for clients whose connection went away.
	Unregister chan *Client

	// Inbound carries every message read from any client.
	Inbound chan *Envelope

	// evicted collects clients whose send buffer overflowed while handling
	// the current event; they are disconnected once it completes.
	evicted []*Client

	stopped chan struct{}
	log     *slog.Logger
}

// NewHub creates a new Hub instance.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		registry:   NewRegistry(),
		clients:    make(map[string]*Client),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		Inbound:    make(chan *Envelope),
		stopped:    make(chan struct{}),
		log:        logger,
	}
}

// Run starts the hub's main processing loop and returns once ctx is done.
// This is the single goroutine that manages all state (rooms, clients).
func (h *Hub) Run(ctx context.Context) {
	defer func() {
		for id, c := range h.clients {
			delete(h.clients, id)
			close(c.Send)
		}
		close(h.stopped)
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case client := <-h.Register:
			h.handleRegister(client)

		case client := <-h.Unregister:
			h.handleUnregister(client)

		case env := <-h.Inbound:
			h.handleMessage(env.Client, env.Message)
		}

		h.flushEvictions()
	}
}

// Attach hands a new client to the hub. It reports false when the hub is no
// longer running.
func (h *Hub) Attach(c *Client) bool {
	select {
	case h.Register <- c:
		return true
	case <-h.stopped:
		return false
	}
}

func (h *Hub) unregister(c *Client) {
	select {
	case h.Unregister <- c:
	case <-h.stopped:
	}
}

func (h *Hub) submit(c *Client, msg *protocol.Message) bool {
	select {
	case h.Inbound <- &Envelope{Client: c, Message: msg}:
		return true
	case <-h.stopped:
		return false
	}
}

func (h *Hub) handleRegister(c *Client) {
	h.clients[c.ID] = c
	h.log.Info("client registered", "peer", c.ID, "codec", c.Codec.Name())

	h.deliver(c, &protocol.Message{Type: protocol.TypeWelcome, PeerID: c.ID})

	if c.Room != "" {
		h.join(c, c.Room)
	}
}

func (h *Hub) handleUnregister(c *Client) {
	if _, ok := h.clients[c.ID]; !ok {
		// Already evicted.
		return
	}
	h.disconnect(c)
	h.log.Info("client unregistered", "peer", c.ID)
}

// disconnect drops c from its room and the hub and closes its send queue,
// which makes WritePump close the connection.
func (h *Hub) disconnect(c *Client) {
	h.leave(c)
	delete(h.clients, c.ID)
	close(c.Send)
}

func (h *Hub) handleMessage(c *Client, msg *protocol.Message) {
	if _, ok := h.clients[c.ID]; !ok {
		return
	}
	h.log.Debug("message received", "peer", c.ID, "type", msg.Type)

	switch msg.Type {
	case protocol.TypeJoin:
		h.join(c, msg.Room)

	case protocol.TypeLeave:
		h.leave(c)

	case protocol.TypeData:
		h.route(c, msg)

	default:
		h.log.Warn("unknown message type", "peer", c.ID, "type", msg.Type)
		h.deliver(c, &protocol.Message{
			Type:  protocol.TypeError,
			Error: "unknown message type: " + msg.Type,
		})
	}
}

// join registers c in room and announces it to the existing members, which
// makes them the offering side towards c.
func (h *Hub) join(c *Client, room string) {
	if room == "" {
		room = protocol.DefaultRoom
	}

	joined, previous := h.registry.Join(c.ID, room)
	if previous != "" {
		h.notifyDeparture(c.ID, h.registry.Members(previous))
	}
	if !joined {
		h.log.Debug("duplicate join ignored", "peer", c.ID, "room", room)
		return
	}

	h.log.Info("client joined room", "peer", c.ID, "room", room, "rooms", len(h.registry.Rooms()), "members", h.registry.Len())

	for _, id := range h.registry.RoomMates(c.ID) {
		if mate, ok := h.clients[id]; ok {
			h.deliver(mate, &protocol.Message{Type: protocol.TypeReady, PeerID: c.ID})
		}
	}
}

func (h *Hub) leave(c *Client) {
	mates := h.registry.RoomMates(c.ID)
	room, ok := h.registry.Leave(c.ID)
	if !ok {
		return
	}

	h.log.Info("client left room", "peer", c.ID, "room", room, "remaining", len(mates))
	h.notifyDeparture(c.ID, mates)
}

func (h *Hub) notifyDeparture(peer string, recipients []string) {
	for _, id := range recipients {
		if mate, ok := h.clients[id]; ok {
			h.deliver(mate, &protocol.Message{Type: protocol.TypeUserDisconnected, PeerID: peer})
		}
	}
}

// route forwards a negotiation message. The payload is passed through
// untouched; only the sender stamp is rewritten.
func (h *Hub) route(c *Client, msg *protocol.Message) {
	if _, ok := h.registry.RoomOf(c.ID); !ok {
		h.log.Debug("data from client outside any room dropped", "peer", c.ID)
		return
	}

	out := &protocol.Message{
		Type:   protocol.TypeData,
		PeerID: c.ID,
		Data:   msg.Data,
	}

	if target := msg.PeerID; target != "" {
		dest, ok := h.clients[target]
		if !ok || !h.registry.SameRoom(c.ID, target) {
			// The target left while this was in flight.
			h.log.Debug("directed message dropped", "from", c.ID, "to", target)
			return
		}
		h.deliver(dest, out)
		return
	}

	for _, id := range h.registry.RoomMates(c.ID) {
		if mate, ok := h.clients[id]; ok {
			h.deliver(mate, out)
		}
	}
}

// deliver queues msg for c without ever blocking the loop.
func (h *Hub) deliver(c *Client, msg *protocol.Message) {
	select {
	case c.Send <- msg:
	default:
		h.log.Warn("send buffer full, evicting client", "peer", c.ID)
		h.evicted = append(h.evicted, c)
	}
}

func (h *Hub) flushEvictions() {
	for len(h.evicted) > 0 {
		c := h.evicted[0]
		h.evicted = h.evicted[1:]
		if _, ok := h.clients[c.ID]; ok {
			h.disconnect(c)
		}
	}
}
