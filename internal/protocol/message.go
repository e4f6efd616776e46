package protocol

// Message defines the structure for every frame exchanged between a
// participant and the relay, in both directions.
//
// For "data" frames PeerID is the target when sent by a client and the sender
// when delivered by the relay. The relay always overwrites it before
// forwarding, so a client can never speak for another peer-id.
type Message struct {
	Type   string `json:"type"`
	PeerID string `json:"peerId,omitempty"`
	Room   string `json:"room,omitempty"`

	// Data is the negotiation payload. The relay never looks inside it.
	Data any `json:"data,omitempty"`

	Error string `json:"error,omitempty"`
}

// Message type constants.
const (
	// client -> relay
	TypeJoin  = "join"
	TypeLeave = "leave"

	// both directions
	TypeData = "data"

	// relay -> client
	TypeWelcome          = "welcome"
	TypeReady            = "ready"
	TypeUserDisconnected = "user-disconnected"
	TypeError            = "error"
)

// DefaultRoom is used when a join names no room.
const DefaultRoom = "room"
