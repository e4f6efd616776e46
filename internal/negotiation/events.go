package negotiation

import "time"

// EventKind enumerates what the orchestrator reports to its observer.
type EventKind int

const (
	// EventJoined: the relay assigned our peer-id, carried in Peer.
	EventJoined EventKind = iota
	EventLinkOpened
	EventStateChanged
	// EventStreamAdded: the link reached Connected and its remote stream is
	// ready to show.
	EventStreamAdded
	// EventStreamRemoved retracts a stream announced earlier.
	EventStreamRemoved
	EventLinkClosed
	// EventRelayError carries an error message sent by the relay.
	EventRelayError
)

func (k EventKind) String() string {
	switch k {
	case EventJoined:
		return "joined"
	case EventLinkOpened:
		return "link-opened"
	case EventStateChanged:
		return "state-changed"
	case EventStreamAdded:
		return "stream-added"
	case EventStreamRemoved:
		return "stream-removed"
	case EventLinkClosed:
		return "link-closed"
	case EventRelayError:
		return "relay-error"
	}
	return "unknown"
}

type Event struct {
	Kind     EventKind
	Peer     string
	Role     Role
	State    State
	StreamID string
	// Err is the close reason for EventLinkClosed and the relay's message for
	// EventRelayError.
	Err error
	At  time.Time
}

// LinkInfo is a point-in-time view of one link.
type LinkInfo struct {
	Peer     string
	Role     Role
	State    State
	StreamID string
	Opened   time.Time
}
